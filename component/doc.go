// Package component defines the lifecycle interface shared by the long-lived
// parts of a chatstream binary and a Registry that starts them in
// registration order and stops them in reverse.
package component
