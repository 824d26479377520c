package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ai_proposal_agent/config"
	"ai_proposal_agent/generator"
	"ai_proposal_agent/publisher"
	"ai_proposal_agent/server"
	"ai_proposal_agent/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:          "proposal-agent",
		Short:        "Draft, review and export client proposals with an LLM",
		SilenceUsage: true,
	}
	configPath string
	verbose    bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config.{yaml,json} in . or ./config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")

	serveCmd.Flags().String("addr", "", "http listen address (overrides server_addr)")

	generateCmd.Flags().String("inputs", "", "path to the proposal inputs JSON")
	generateCmd.Flags().String("transcript", "", "path to a call transcript")
	generateCmd.Flags().StringSlice("attach", nil, "supporting documents to mention in the proposal")
	generateCmd.Flags().String("format", "md", "comma-separated export formats (html,docx,pdf,md)")
	generateCmd.Flags().String("out", "", "export directory (overrides export.dir)")
	generateCmd.Flags().Bool("save", false, "store the proposal")
	generateCmd.Flags().Bool("audit", false, "print a quality review")
	generateCmd.Flags().Bool("email", false, "print a cover e-mail")
	_ = generateCmd.MarkFlagRequired("inputs")

	exportCmd.Flags().String("format", "html,docx,pdf", "comma-separated export formats (html,docx,pdf,md)")
	exportCmd.Flags().String("out", "", "export directory (overrides export.dir)")

	rootCmd.AddCommand(serveCmd, generateCmd, listCmd, exportCmd)
}

// app holds what every command shares.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	verbose bool
	store   storage.Store
	pub     *publisher.Publisher
	agent   *generator.Agent
	logFile *os.File
}

func (a *app) infof(format string, args ...interface{}) {
	if !a.verbose {
		return
	}
	a.logger.Printf("[INFO] "+format, args...)
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Printf("[WARN] %v", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// setup loads config, opens the log file and store, and builds the agent
// when withAgent is set.
func setup(ctx context.Context, withAgent bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, verbose: verbose || cfg.Verbose}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}
	log.SetOutput(out)
	a.logger = log.Default()

	a.store, err = storage.Open(cfg.Storage.Driver, cfg.Storage.Dir, cfg.Storage.DSN)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pub, err = publisher.New(cfg.Export.LogoPath, a.verbose, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	if withAgent {
		llm, err := buildLLM(ctx, cfg.LLM)
		if err != nil {
			a.Close()
			return nil, err
		}
		completer, err := generator.NewCompleter(llm, cfg.LLM.MaxRetries, cfg.LLM.Backoff(), nil, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		templates, err := generator.LoadTemplates(cfg.PromptsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.agent, err = generator.NewAgent(completer, &templates, a.verbose, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.infof("Using llm provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	return a, nil
}

func buildLLM(ctx context.Context, cfg config.LLMConfig) (generator.LLMClient, error) {
	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(cfg.Settings())
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible API at its own base_url.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(cfg.Settings())
	case "gemini":
		return generator.NewGeminiLLMFromConfig(ctx, cfg.Settings())
	case "mock":
		return generator.MockLLM{}, nil
	case "":
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

// withTimeout applies llm.timeout_seconds to one command's work.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.LLM.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(a.agent, server.Options{
			Store:     a.store,
			Publisher: a.pub,
			ExportDir: a.cfg.Export.Dir,
			Timeout:   a.cfg.LLM.Timeout(),
			Verbose:   a.verbose,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		listen := a.cfg.ServerAddr
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			listen = addr
		}
		a.logger.Printf("Starting web server on %s", listen)
		httpServer := &http.Server{
			Addr:              listen,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return httpServer.ListenAndServe()
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a proposal from an inputs file and export it",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		inputsPath, _ := flags.GetString("inputs")
		transcriptPath, _ := flags.GetString("transcript")
		attachPaths, _ := flags.GetStringSlice("attach")
		formatList, _ := flags.GetString("format")
		outDir, _ := flags.GetString("out")
		save, _ := flags.GetBool("save")
		doAudit, _ := flags.GetBool("audit")
		doEmail, _ := flags.GetBool("email")

		formats, err := publisher.ParseFormats(formatList)
		if err != nil {
			return err
		}
		inputs, err := readInputs(inputsPath)
		if err != nil {
			return err
		}
		if err := generator.ValidateInputs(inputs); err != nil {
			return err
		}
		transcript := ""
		if transcriptPath != "" {
			data, err := os.ReadFile(transcriptPath)
			if err != nil {
				return fmt.Errorf("reading transcript: %w", err)
			}
			transcript = string(data)
		}
		attachments, err := statAttachments(attachPaths)
		if err != nil {
			return err
		}

		a, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		if outDir == "" {
			outDir = a.cfg.Export.Dir
		}

		ctx, cancel := a.withTimeout(cmd.Context())
		defer cancel()

		sess := generator.NewSession("cli", inputs, a.agent)
		log.Printf("[cli] generating title=%q client=%q", inputs.ProjectTitle, inputs.ClientName)
		doc, err := sess.Generate(ctx, transcript, attachments)
		if err != nil {
			return err
		}
		view := sess.View()
		for _, flag := range view.Flags {
			a.logger.Printf("[WARN] %s", flag)
		}
		for _, sec := range doc.Ordered() {
			if sec.Body == "" {
				a.logger.Printf("[WARN] section %q is empty", sec.Name)
			}
		}

		if doAudit {
			printJSON(cmd.OutOrStdout(), sess.Audit(ctx))
		}
		if doEmail {
			printJSON(cmd.OutOrStdout(), sess.CreateEmail(ctx))
		}

		id := storage.NewProposalID(time.Now(), storage.ProposalSlug(inputs.ProjectTitle))
		if save {
			if id, err = storage.SaveSession(ctx, a.store, sess); err != nil {
				return err
			}
			log.Printf("[cli] saved proposal id=%s", id)
		}
		pub := a.pub.WithAssetDir(filepath.Dir(inputsPath))
		paths, err := pub.Publish(outDir, id, doc, publisher.CoverFor(doc, inputs), formats)
		if err != nil {
			return err
		}
		printPaths(cmd.OutOrStdout(), paths)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <proposal-id>",
	Short: "Export a saved proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatList, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")
		formats, err := publisher.ParseFormats(formatList)
		if err != nil {
			return err
		}

		a, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		if outDir == "" {
			outDir = a.cfg.Export.Dir
		}

		rec, err := a.store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc := generator.DocumentFromSections(rec.Metadata.Title, rec.Sections)
		paths, err := a.pub.Publish(outDir, rec.ID, doc, publisher.CoverFor(doc, rec.Metadata.Inputs), formats)
		if err != nil {
			return err
		}
		log.Printf("[cli] exported %s", rec.ID)
		printPaths(cmd.OutOrStdout(), paths)
		return nil
	},
}

func readInputs(path string) (generator.Inputs, error) {
	var in generator.Inputs
	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("reading inputs: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parsing inputs %s: %w", path, err)
	}
	return in, nil
}

func statAttachments(paths []string) ([]generator.Attachment, error) {
	var out []generator.Attachment
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, errors.New("attachment " + p + " is a directory")
		}
		out = append(out, generator.Attachment{Name: filepath.Base(p), Size: info.Size()})
	}
	return out, nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printPaths(w io.Writer, paths map[string]string) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, paths[name])
	}
}
