package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/store"
)

// chatThread is a conversation persisted between invocations.
type chatThread struct {
	DeployID  string              `json:"deploy_id"`
	Messages  []model.ChatMessage `json:"messages"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func cmdChat(ctx context.Context, args []string) error {
	fs := newFlagSet("chat", "chat [flags] <deploy-id> <message...>")
	conn := addConnectFlags(fs)
	thread := fs.StringP("thread", "t", "", "thread name (default: one thread per deploy id)")
	reset := fs.Bool("reset", false, "start the thread over")
	list := fs.Bool("list", false, "list saved threads and exit")
	maxTokens := fs.Int("max-tokens", 0, "maximum tokens to generate (default: backend default)")
	temperature := fs.Float64("temperature", -1, "sampling temperature (default: backend default)")
	system := fs.String("system", "", "system prompt for a new thread")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*list && fs.NArg() < 2 {
		fs.Usage()
		return errUsage
	}

	a, err := conn.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.store(ctx)
	if err != nil {
		return err
	}

	if *list {
		keys, err := st.KV.Keys(ctx, store.BucketChatThreads)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	}

	deployID := fs.Arg(0)
	key := *thread
	if key == "" {
		key = deployID
	}

	var t chatThread
	if !*reset {
		if err := st.KV.Get(ctx, store.BucketChatThreads, key, &t); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load thread %s: %w", key, err)
		}
	}
	if t.DeployID != "" && t.DeployID != deployID {
		return fmt.Errorf("thread %s belongs to deployment %s", key, t.DeployID)
	}
	t.DeployID = deployID
	if len(t.Messages) == 0 && *system != "" {
		t.Messages = append(t.Messages, model.ChatMessage{Role: "system", Content: *system})
	}
	t.Messages = append(t.Messages, model.ChatMessage{Role: "user", Content: strings.Join(fs.Args()[1:], " ")})

	req := model.InferenceRequest{
		DeployID:  deployID,
		Messages:  t.Messages,
		MaxTokens: *maxTokens,
	}
	if *temperature >= 0 {
		req.Temperature = temperature
	}

	res, err := a.client.Inference(ctx, req, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	t.Messages = append(t.Messages, model.ChatMessage{Role: "assistant", Content: res.Text})
	t.UpdatedAt = time.Now().UTC()
	if err := st.KV.Put(ctx, store.BucketChatThreads, key, t); err != nil {
		return fmt.Errorf("save thread %s: %w", key, err)
	}

	if s := res.Stats; s != nil {
		fmt.Fprintf(os.Stderr, "ttft %.2fs, %.1f tok/s, %d tokens decoded, %d prefilled\n",
			s.UserTTFTSeconds, tokensPerSecond(s.UserTPOT), s.TokensDecoded, s.TokensPrefilled)
	}
	return nil
}

func tokensPerSecond(tpot float64) float64 {
	if tpot <= 0 {
		return 0
	}
	return 1 / tpot
}
