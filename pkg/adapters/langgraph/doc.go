// Package langgraph implements ports.WorkflowEngine against a LangGraph server.
//
// A session coordinate is used as the LangGraph thread_id. Runs are streamed with
// stream_mode "updates"; an update carrying "__interrupt__" is a pause, every
// other update is progress. Resumes are sent as a Command{resume: value}.
package langgraph
