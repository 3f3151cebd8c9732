package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/gopocket/internal/console"
	"github.com/jcorbin/gopocket/internal/logio"
	"github.com/jcorbin/gopocket/internal/panicerr"
	"github.com/jcorbin/gopocket/internal/progstore"
)

const usage = `usage: gopocket [flags] COMMAND [ARGS]

commands:
  run NAME          run a stored program
  ls                list stored programs
  cat NAME          print a program's text
  new NAME          create an empty program
  save NAME FILE|-  store program text from a file or stdin
  rm NAME           delete a program
  mv OLD NEW        rename a program
  import FILE       store every program from a YAML bundle
  export            write all programs as a YAML bundle
  mem               report storage and working memory capacity

flags:
`

func main() {
	ctx := context.Background()
	log := logio.NewLogger(os.Stderr)

	cfg := defaultConfig
	var (
		configPath string
		imagePath  string
		transcript string
		timeout    time.Duration
		trace      bool
		seed       int
	)
	flags := flag.NewFlagSet("gopocket", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	flags.StringVar(&configPath, "config", "", "load settings from a YAML file")
	flags.StringVar(&imagePath, "image", "gopocket.img", "program storage image file")
	flags.StringVar(&transcript, "transcript", "", "copy PRINT output to a file")
	flags.DurationVar(&timeout, "timeout", 0, "specify a time limit")
	flags.BoolVar(&trace, "trace", false, "enable trace logging")
	flags.UintVar(&cfg.MemLimit, "mem-limit", cfg.MemLimit, "working memory limit in bytes")
	flags.BoolVar(&cfg.Strict, "strict", cfg.Strict, "halt on calls to undefined programs")
	flags.IntVar(&seed, "seed", 0, "random number generator seed")
	flags.StringVar(&cfg.Charset, "charset", cfg.Charset, "device character set")
	flags.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "INPUT prompt on a terminal")
	flags.Parse(os.Args[1:])

	if configPath != "" {
		if err := loadConfig(flags, &cfg, configPath); err != nil {
			log.Errorf("%v", err)
			os.Exit(log.ExitCode())
		}
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			s := int16(seed)
			cfg.Seed = &s
		}
	})

	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := cli{
		cfg:        cfg,
		imagePath:  imagePath,
		transcript: transcript,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		log:        log,
	}
	if trace {
		c.logf = log.Leveledf("TRACE")
	}
	if err := c.exec(ctx, flags.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flags.Usage()
		}
		log.Errorf("%v", err)
	}
	os.Exit(log.ExitCode())
}

var errUsage = errors.New("usage")

// loadConfig reads a config file into cfg, whose fields back some of flags;
// file values apply first, then any flag given explicitly wins again.
func loadConfig(flags *flag.FlagSet, cfg *config, path string) error {
	given := make(map[string]string)
	flags.Visit(func(f *flag.Flag) { given[f.Name] = f.Value.String() })
	if err := cfg.load(path); err != nil {
		return err
	}
	for name, value := range given {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("-%v: %w", name, err)
		}
	}
	return nil
}

type cli struct {
	cfg        config
	imagePath  string
	transcript string
	stdin      io.Reader
	stdout     io.Writer
	log        *logio.Logger
	logf       func(mess string, args ...interface{})

	store *progstore.Store
}

func (c *cli) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	if err := c.cfg.validate(); err != nil {
		return err
	}
	if err := c.loadImage(); err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %v takes %v argument(s)", errUsage, cmd, n)
		}
		return nil
	}

	switch cmd {
	case "run":
		if err := need(1); err != nil {
			return err
		}
		return c.run(ctx, args[0])

	case "ls":
		for _, ent := range c.store.List() {
			fmt.Fprintf(c.stdout, "%3d %-16s %5d\n", ent.Slot, ent.Name, ent.Size)
		}
		return nil

	case "cat":
		if err := need(1); err != nil {
			return err
		}
		text, err := c.store.Text(args[0])
		if err != nil {
			return err
		}
		_, err = c.stdout.Write(append(text, '\n'))
		return err

	case "new":
		if err := need(1); err != nil {
			return err
		}
		if err := c.store.Create(args[0]); err != nil {
			return err
		}
		return c.saveImage()

	case "save":
		if err := need(2); err != nil {
			return err
		}
		text, err := c.readSource(args[1])
		if err != nil {
			return err
		}
		if err := c.store.Save(args[0], text); err != nil {
			return err
		}
		return c.saveImage()

	case "rm":
		if err := need(1); err != nil {
			return err
		}
		if err := c.store.Delete(args[0]); err != nil {
			return err
		}
		return c.saveImage()

	case "mv":
		if err := need(2); err != nil {
			return err
		}
		if err := c.store.Rename(args[0], args[1]); err != nil {
			return err
		}
		return c.saveImage()

	case "import":
		if err := need(1); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := c.store.ImportBundle(f)
		c.log.Printf("INFO", "imported %v program(s)", n)
		if err != nil {
			return err
		}
		return c.saveImage()

	case "export":
		return c.store.ExportBundle(c.stdout)

	case "mem":
		used := len(c.store.List())
		fmt.Fprintf(c.stdout, "storage: %v/%v slots used, %v bytes per slot, %v bytes per program\n",
			used, c.store.Slots(), c.store.SlotSize(), c.store.MaxText())
		fmt.Fprintf(c.stdout, "working memory: %v bytes, heap apex %v (%v cells)\n",
			c.cfg.MemLimit, c.cfg.HeapApex, c.cfg.HeapApex/cellSize)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// run executes a program against the console, raising the cancel signal on
// interrupt.
func (c *cli) run(ctx context.Context, name string) error {
	cm, err := lookupCharset(c.cfg.Charset)
	if err != nil {
		return err
	}
	conOpts := []console.Option{
		console.WithCharset(cm),
		console.WithPrompt(c.cfg.Prompt),
	}
	if c.transcript != "" {
		f, err := os.Create(c.transcript)
		if err != nil {
			return err
		}
		defer f.Close()
		conOpts = append(conOpts, console.WithTranscript(f))
	}
	con := console.New(c.stdin, c.stdout, conOpts...)
	if con.Interactive() {
		c.log.Printf("INFO", "running %v; press Escape at a PRINT or Ctrl-C to cancel", name)
	}

	opts := append(c.cfg.options(),
		WithStorage(c.store),
		WithDisplay(con),
		WithLineEditor(con),
	)
	if c.logf != nil {
		opts = append(opts, WithLogf(c.logf))
	}
	vm := New(opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return vm.Run(ctx, name)
	})
	eg.Go(func() error {
		cancelOnInterrupt(ctx, con)
		return nil
	})
	err = eg.Wait()

	if c.logf != nil {
		lw := logio.Writer{Logf: c.logf}
		vm.Dump(&lw)
		lw.Close()
	}
	return c.runError(name, err)
}

// runError reports how a run ended: cancellation is not an error, and a
// fault inside the VM itself is logged with its stack when tracing.
func (c *cli) runError(name string, err error) error {
	switch {
	case errors.Is(err, ErrCanceled):
		c.log.Printf("INFO", "%v canceled", name)
		return nil
	case panicerr.IsPanic(err):
		if c.logf != nil {
			c.logf("%s", panicerr.PanicStack(err))
		}
		return fmt.Errorf("internal fault running %v: %w", name, err)
	case panicerr.IsExit(err):
		return fmt.Errorf("internal fault running %v: %w", name, err)
	}
	return err
}

func cancelOnInterrupt(ctx context.Context, con *console.Console) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			con.Cancel()
		}
	}
}

// loadImage reads the storage image, starting from a freshly formatted store
// if no image exists yet.
func (c *cli) loadImage() error {
	c.store = progstore.New(c.cfg.Slots, c.cfg.SlotSize)
	f, err := os.Open(c.imagePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()
	if _, err := c.store.ReadFrom(f); err != nil {
		return fmt.Errorf("reading %v: %w", c.imagePath, err)
	}
	return nil
}

func (c *cli) saveImage() error {
	var buf bytes.Buffer
	if _, err := c.store.WriteTo(&buf); err != nil {
		return err
	}
	return os.WriteFile(c.imagePath, buf.Bytes(), 0o644)
}

func (c *cli) readSource(path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return []byte(text), nil
}
