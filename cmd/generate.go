package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"storyloom/pkg/client"
	"storyloom/pkg/entities"
	"storyloom/pkg/orchestrator"
	"storyloom/pkg/store"
	"storyloom/pkg/utils"
)

type generateFlags struct {
	server      string
	topic       string
	proficiency string
	source      string
	length      string
	out         string
	timeout     time.Duration
}

func generateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a storybook or meme through a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "storyloom server base URL")
	cmd.Flags().StringVar(&f.topic, "topic", "", "topic to explain")
	cmd.Flags().StringVar(&f.proficiency, "proficiency", string(entities.Beginner), "Beginner, Intermediate or Expert")
	cmd.Flags().StringVar(&f.source, "source", string(entities.AcademicPapers), "Academic Papers or Newsletters")
	cmd.Flags().StringVar(&f.length, "length", string(entities.LengthShort), "length preset, or Meme")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the finished session as JSON to this file")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "overall deadline")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func generate(parent context.Context, f generateFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, done := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer done()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	kv := store.NewMemory()
	flows := orchestrator.NewManager(store.NewSessions(kv), store.NewLibrary(kv, 1), orchestrator.DefaultWidth)
	defer flows.Close()

	flow, err := flows.Flow(ctx, ksuid.New().String(), client.New(f.server))
	if err != nil {
		return err
	}

	if _, err := flow.SetTopic(ctx, f.topic); err != nil {
		return err
	}
	opts := orchestrator.Options{
		Proficiency: entities.Proficiency(f.proficiency),
		Source:      entities.Source(f.source),
		Length:      entities.LengthPreset(f.length),
	}
	state, err := flow.SubmitOptions(ctx, opts)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	log.Info("summary ready", "topic", state.CurrentTopic)
	fmt.Println(state.CurrentSummary)

	if _, err := flow.CreateContent(ctx); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := flow.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for images: %w", err)
	}

	state = flow.State()
	if state.CurrentStep != entities.StepContentDisplay {
		return fmt.Errorf("generation stopped at the %s step: %s", state.CurrentStep, state.Error)
	}
	if state.CurrentTextLength.IsMeme() {
		log.Info("meme ready", "caption", state.CurrentMemeData.Text, "image", utils.LimitStr(deref(state.CurrentMemeData.ImageURL), 96))
	} else {
		for _, p := range state.CurrentStorybook {
			log.Info("page ready", "page", p.ID, "title", p.Title, "image", utils.LimitStr(deref(p.ImageURL), 96))
		}
	}

	if f.out != "" {
		if err := utils.Save(f.out, state); err != nil {
			return fmt.Errorf("writing %s: %w", f.out, err)
		}
		log.Info("session written", "path", f.out)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
