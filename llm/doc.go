// Package llm describes chat completion requests and the providers that
// stream them.
//
// A Provider turns a CompletionRequest into a frame.Source of raw provider
// frames. Request bodies are built by a Dialect chosen from the model ID, the
// same way database/sql picks a driver: dialects register themselves by name
// and the Adapter looks them up.
//
//	adapter := llm.NewAdapter("bedrock", client,
//	    llm.WithPath(func(model string) string { return "/model/" + model + "/invoke-with-response-stream" }),
//	    llm.WithStreamFormat(llm.StreamEventStream))
//	src, err := adapter.Stream(ctx, llm.CompletionRequest{
//	    Model:    "amazon.nova-pro-v1:0",
//	    Messages: []llm.Message{{Role: llm.RoleUser, Content: "Bonjour"}},
//	})
//
// Built-in dialects cover Amazon Nova, Anthropic Claude and Amazon Titan on
// Bedrock. The ollama subpackage adds a local Ollama provider.
package llm
