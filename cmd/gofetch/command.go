package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	fetch "github.com/frankli0324/go-fetch"
	"github.com/frankli0324/go-fetch/dialer"
)

type flags struct {
	method    string
	headers   []string
	data      string
	maxRedirs int
	noFollow  bool
	redirect  string
	compress  bool
	timeout   time.Duration
	maxSize   int64
	include   bool
	convert   bool
	insecure  bool
	verbose   bool
	proxy     string
	resolve   []string
	dnsServer string
}

func newCommand(log *logrus.Logger) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "gofetch [flags] URL",
		Short:         "Fetch a URL and write the response body to stdout",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			err := run(ctx, cmd, log, f, args[0])
			if err != nil {
				log.WithError(err).WithField("type", errorType(err)).Error("fetch failed")
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.method, "request", "X", "", "request method")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "extra header, \"Name: value\"")
	fl.StringVarP(&f.data, "data", "d", "", "request body, @file reads a file and @- streams stdin")
	fl.IntVar(&f.maxRedirs, "max-redirs", fetch.DefaultFollow, "maximum number of redirects to follow")
	fl.BoolVar(&f.noFollow, "no-follow", false, "return redirect responses as they are")
	fl.StringVar(&f.redirect, "redirect", string(fetch.RedirectFollow), "redirect mode: follow, manual or error")
	fl.BoolVar(&f.compress, "compressed", true, "request and decode compressed responses")
	fl.DurationVar(&f.timeout, "timeout", 0, "timeout of the request and of each body read")
	fl.Int64Var(&f.maxSize, "max-size", 0, "maximum response body size in bytes")
	fl.BoolVarP(&f.include, "include", "i", false, "print the status line and headers")
	fl.BoolVar(&f.convert, "convert", false, "convert the body from its detected charset to UTF-8")
	fl.BoolVarP(&f.insecure, "insecure", "k", false, "skip TLS certificate verification")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log every step of the fetch")
	fl.StringVar(&f.proxy, "proxy", "", "proxy URL (http, https, socks5, socks5h), defaults to the environment")
	fl.StringArrayVar(&f.resolve, "resolve", nil, "static resolution, \"host:address\"")
	fl.StringVar(&f.dnsServer, "dns-server", "", "DNS server to resolve with, \"host:port\"")
	return cmd
}

func errorType(err error) string {
	if fetch.IsAbort(err) {
		return string(fetch.TypeAborted)
	}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return string(fe.Type)
	}
	return "validation"
}

func (f *flags) dialer() (*dialer.CoreDialer, error) {
	d := dialer.New()
	if f.insecure {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	d.GetProxy = dialer.ProxyFromEnvironment
	if f.proxy != "" {
		p, err := dialer.StaticProxy(f.proxy)
		if err != nil {
			return nil, err
		}
		d.GetProxy = p
	}
	if len(f.resolve) > 0 || f.dnsServer != "" {
		cfg := &dialer.ResolveConfig{CustomDNSServer: f.dnsServer, StaticHosts: map[string]string{}}
		for _, r := range f.resolve {
			host, addr, ok := strings.Cut(r, ":")
			if !ok {
				return nil, fmt.Errorf("invalid --resolve %q, want host:address", r)
			}
			cfg.StaticHosts[host] = addr
		}
		d.ResolveConfig = cfg
	}
	return d, nil
}

func (f *flags) options(stdin io.Reader) ([]fetch.Option, error) {
	opts := []fetch.Option{
		fetch.WithFollow(f.maxRedirs),
		fetch.WithCompress(f.compress),
		fetch.WithTimeout(f.timeout),
		fetch.WithSize(f.maxSize),
	}
	mode := fetch.RedirectMode(f.redirect)
	if f.noFollow {
		mode = fetch.RedirectManual
	}
	opts = append(opts, fetch.WithRedirect(mode))
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		opts = append(opts, fetch.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	method := f.method
	if f.data != "" {
		var body any = f.data
		switch {
		case f.data == "@-":
			body = io.NopCloser(stdin)
		case strings.HasPrefix(f.data, "@"):
			file, err := os.Open(f.data[1:])
			if err != nil {
				return nil, err
			}
			body = file
		}
		opts = append(opts, fetch.WithBody(body))
		if method == "" {
			method = "POST"
		}
	}
	if method != "" {
		opts = append(opts, fetch.WithMethod(method))
	}
	return opts, nil
}

func run(ctx context.Context, cmd *cobra.Command, log *logrus.Logger, f *flags, url string) error {
	d, err := f.dialer()
	if err != nil {
		return err
	}
	opts, err := f.options(cmd.InOrStdin())
	if err != nil {
		return err
	}
	c := &fetch.Client{}
	c.SetLogger(log)
	c.UseDialer(func(fetch.Dialer) fetch.Dialer { return d })

	res, err := c.Fetch(ctx, url, opts...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if f.include {
		fmt.Fprintf(out, "%d %s\n", res.Status, res.StatusText)
		res.Header.Range(func(name, value string) bool {
			fmt.Fprintf(out, "%s: %s\n", name, value)
			return true
		})
		fmt.Fprintln(out)
	}
	if f.convert {
		text, err := res.Body.TextConverted()
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	}
	stream, err := res.Body.Stream()
	if err != nil {
		return err
	}
	defer stream.Close()
	_, err = io.Copy(out, stream)
	return err
}
