// Package bedrock connects the stream pipeline to Amazon Bedrock.
//
// The runtime side posts a dialect-built body to
// InvokeModelWithResponseStream and hands back the binary event-stream as a
// frame.Source. The knowledge-base side calls the agent runtime Retrieve API
// and joins the top passages into prompt context. Both sign requests with
// SigV4 using credentials resolved by the AWS SDK's default chain, or static
// keys from configuration.
package bedrock
