package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/abhisek/lingo/internal/app"
	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/settings"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Practice a spoken dialogue in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPractice(cmd)
	},
}

func init() {
	addPracticeFlags(practiceCmd)
}

func addPracticeFlags(c *cobra.Command) {
	c.Flags().StringP("topic", "t", "ordering coffee", "What the dialogue is about")
	c.Flags().Duration("duration", 3*time.Minute, "Approximate length of the dialogue")
	c.Flags().String("script", "", "Play a script from a JSON file instead of generating one")
	c.Flags().Bool("autoplay", true, "Move to the next line automatically")
	c.Flags().Bool("hands-free", false, "Open the microphone automatically on your turn")
	c.Flags().Bool("muted", false, "Show AI lines without speaking them")
	c.Flags().Bool("no-fallback", false, "Fail instead of using the fallback script when generation fails")
}

// runPractice builds an engine with local audio and hosts it in the
// terminal UI.
func runPractice(cmd *cobra.Command) error {
	logger, err := newFileLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	flags := cmd.Flags()
	topic, _ := flags.GetString("topic")
	duration, _ := flags.GetDuration("duration")
	scriptFile, _ := flags.GetString("script")
	strict, _ := flags.GetBool("no-fallback")

	set := settings.FromEnv()
	for name, dst := range map[string]*bool{
		"autoplay":   &set.Autoplay,
		"hands-free": &set.HandsFree,
		"muted":      &set.Muted,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	audioCfg := audio.ConfigFromEnv()
	if err := audioCfg.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, st, scriptFile, strict, nil, logger)
	if err != nil {
		return err
	}

	engine, err := session.New(session.Deps{
		Scripts:     svc.scripts,
		Synth:       svc.synth,
		Transcriber: svc.transcriber,
		Player:      audio.NewController(audio.NewExecPlayer(audioCfg)),
		Mic:         audio.NewMicrophone(audio.NewExecRecorder(audioCfg)),
		Settings:    settings.NewController(set),
	}, svc.sessionCfg, logger.Named("session"))
	if err != nil {
		return err
	}
	defer engine.Close()

	m := app.New(engine, &repoArchive{repo: st.SessionRepo(), logger: logger}, app.Options{
		Topic:    topic,
		Duration: duration,
		Styled:   term.IsTerminal(os.Stdout.Fd()),
	}, logger.Named("app"))
	defer m.Close()

	p := tea.NewProgram(m)
	stopQuit := context.AfterFunc(ctx, p.Quit)
	defer stopQuit()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run practice: %w", err)
	}
	// Quit from outside the model skips its save.
	if !m.Quitting() {
		m.Save()
	}
	if s := m.Summary(); s != "" {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return m.Err()
}
