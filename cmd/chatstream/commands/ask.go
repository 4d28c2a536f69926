package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/client"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/reconstruct"
	"github.com/kbukum/chatstream/transport"
)

// cancelGrace bounds the wait for a cancelled reveal to resolve.
const cancelGrace = 5 * time.Second

// ErrCancelled is returned when the user interrupts a reveal.
var ErrCancelled = errors.New("cancelled")

type askOptions struct {
	model       string
	prompt      string
	temperature float64
	kb          string
	provider    string
	sse         bool
	noStream    bool
	local       bool
	region      string
}

// reveal is a reveal in progress, remote or local.
type reveal interface {
	Done() <-chan struct{}
	Cancel()
	Wait(ctx context.Context) (reconstruct.Result, error)
}

func newAskCommand(g *globals) *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question and reveal the answer as it streams",
		Long: `Ask a question and reveal the answer as it streams.

The question is taken from the arguments, or from stdin when none are given.
Ctrl-C stops the reveal and cancels the stream on the server.

With --local the provider runs in-process instead of through chatstreamd.
The bedrock provider then reads AWS credentials from the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req := chat.Request{
				Messages:        []llm.Message{{Role: llm.RoleUser, Content: question}},
				Prompt:          o.prompt,
				KnowledgeBaseID: o.kb,
				Provider:        o.provider,
			}
			if o.model != "" {
				req.Model = &llm.Model{ID: o.model}
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = llm.Float(o.temperature)
			}
			return runAsk(cmd.Context(), g, o, req, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "model ID (server default when empty)")
	f.StringVarP(&o.prompt, "prompt", "p", "", "system prompt")
	f.Float64VarP(&o.temperature, "temperature", "t", 1, "sampling temperature within [0, 1]")
	f.StringVar(&o.kb, "kb", "", "knowledge base ID for retrieval")
	f.StringVar(&o.provider, "provider", "", "provider name (bedrock, ollama, echo)")
	f.BoolVar(&o.sse, "sse", false, "ask the server for SSE framing")
	f.BoolVar(&o.noStream, "no-stream", false, "print the whole answer once it is complete")
	f.BoolVar(&o.local, "local", false, "run the provider in-process")
	f.StringVar(&o.region, "region", "", "AWS region for --local bedrock")
	return cmd
}

func readQuestion(args []string, stdin io.Reader) (string, error) {
	q := strings.Join(args, " ")
	if q == "" && stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read question: %w", err)
		}
		q = string(b)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("no question given")
	}
	return q, nil
}

func runAsk(ctx context.Context, g *globals, o *askOptions, req chat.Request, out io.Writer) error {
	var sink reconstruct.Sink = reconstruct.SinkFunc(func(unit string) { _, _ = io.WriteString(out, unit) })
	if o.noStream {
		sink = reconstruct.SinkFunc(func(string) {})
	}

	var (
		r   reveal
		err error
	)
	if o.local {
		r, err = startLocal(ctx, g, o, req, sink)
	} else {
		r, err = startRemote(ctx, g, o, req, sink)
	}
	if err != nil {
		return err
	}

	res, err := wait(ctx, r)
	if err != nil {
		return err
	}
	if o.noStream {
		_, _ = io.WriteString(out, res.Text)
	}
	_, _ = io.WriteString(out, "\n")

	switch res.Outcome {
	case reconstruct.Cancelled:
		return ErrCancelled
	case reconstruct.Errored:
		return res.Err
	}
	return nil
}

func startRemote(ctx context.Context, g *globals, o *askOptions, req chat.Request, sink reconstruct.Sink) (reveal, error) {
	c, err := g.client(func(cfg *client.Config) {
		if o.sse {
			cfg.Framing = transport.FramingSSE
		}
	})
	if err != nil {
		return nil, err
	}
	s, err := c.Chat(ctx, req, sink)
	if err != nil {
		return nil, err
	}
	logger.Debug("stream accepted", logger.Fields(logger.FieldSessionID, s.ID))
	return s, nil
}

// wait resolves r, cancelling it first if ctx ends.
func wait(ctx context.Context, r reveal) (reconstruct.Result, error) {
	select {
	case <-r.Done():
	case <-ctx.Done():
		r.Cancel()
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelGrace)
	defer cancel()
	return r.Wait(wctx)
}
