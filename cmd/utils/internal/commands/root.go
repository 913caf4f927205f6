package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/pkg/store"
	"github.com/spf13/cobra"
)

const (
	AppName    = "pos-utils"
	AppVersion = "0.1.0"
)

// Options carries what commands need from main. NewStore is replaced in tests.
type Options struct {
	Config   *apt.Config
	Logger   apt.Logger
	Out      io.Writer
	NewStore func(cfg store.Config, logger apt.Logger) (store.Client, error)
	Now      func() time.Time
}

type flags struct {
	url      string
	dialect  string
	username string
	pin      string
	timeout  time.Duration
}

// NewRoot builds the pos-utils command tree.
func NewRoot(opts Options) *cobra.Command {
	if opts.Config == nil {
		opts.Config = apt.NewConfig()
	}
	if opts.Logger == nil {
		opts.Logger = apt.NewNoopLogger()
	}
	if opts.NewStore == nil {
		opts.NewStore = store.New
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	f := &flags{}
	root := &cobra.Command{
		Use:          AppName,
		Short:        "Operator utilities for the POS order store",
		SilenceUsage: true,
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
		root.SetErr(opts.Out)
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.url, "url", opts.Config.GetStringOrDef("store.url", "http://localhost:8000/api"), "order store base URL")
	pf.StringVar(&f.dialect, "dialect", opts.Config.GetStringOrDef("store.dialect", store.DialectREST), "order store dialect (rest or service)")
	pf.StringVar(&f.username, "username", opts.Config.GetStringOrDef("store.username", ""), "sign in as this user")
	pf.StringVar(&f.pin, "pin", opts.Config.GetStringOrDef("store.pin", ""), "password or PIN for --username")
	pf.DurationVar(&f.timeout, "timeout", store.DefaultTimeout, "store request timeout")

	r := &runner{opts: opts, flags: f}
	root.AddCommand(
		ordersCommand(r),
		boardCommand(r),
		setStatusCommand(r),
		watchCommand(r),
		versionCommand(),
	)
	return root
}

// runner builds the store client and controller for a command invocation.
type runner struct {
	opts  Options
	flags *flags
}

func (r *runner) client(ctx context.Context) (store.Client, error) {
	var token string
	client, err := r.opts.NewStore(store.Config{
		Dialect: r.flags.dialect,
		URL:     r.flags.url,
		Timeout: r.flags.timeout,
		Token:   func(context.Context) string { return token },
	}, r.opts.Logger)
	if err != nil {
		return nil, err
	}

	if r.flags.username == "" {
		return client, nil
	}
	res, err := client.Login(ctx, r.flags.username, r.flags.pin)
	if err != nil {
		return nil, fmt.Errorf("cannot sign in as %s: %w", r.flags.username, err)
	}
	token = res.Access
	r.opts.Logger.Info("signed in", "username", res.Username, "role", res.Role)
	return client, nil
}

// controller loads the current orders into a fresh controller.
func (r *runner) controller(cmd *cobra.Command, opts ...lifecycle.Option) (*lifecycle.Controller, error) {
	ctx := cmd.Context()
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]lifecycle.Option{lifecycle.WithLogger(r.opts.Logger)}, opts...)
	ctrl := lifecycle.NewController(client, opts...)
	if err := ctrl.Refresh(ctx, false); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("cannot load orders: %w", err)
	}
	return ctrl, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", AppName, AppVersion)
		},
	}
}
