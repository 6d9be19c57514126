package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/interlude/internal/config"
	"github.com/aretw0/interlude/internal/presentation/graph"
)

// PrintGraph writes the Mermaid diagram of the configured script workflow.
func PrintGraph(cfg config.EngineConfig, w io.Writer) error {
	if cfg.Kind == "langgraph" {
		return fmt.Errorf("graph is only available for script workflows; the langgraph topology lives on the server")
	}
	wf, err := LoadWorkflow(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, graph.GenerateMermaid(wf))
	return err
}
