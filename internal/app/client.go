package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/snapreel/backend/internal/apiclient"
	"github.com/snapreel/backend/internal/capture"
	"github.com/snapreel/backend/internal/config"
	"github.com/snapreel/backend/internal/feed"
	"github.com/snapreel/backend/internal/forms"
	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/notify"
	"github.com/snapreel/backend/internal/session"
)

var errSignInFailed = errors.New("sign in failed")

const welcome = "Welcome to SnapReel. Record with post, watch with feed."

// fileRecorder stands in for the camera: the "recording" is a file that
// already exists on disk.
type fileRecorder struct {
	path string
}

func (r fileRecorder) Start(context.Context) error {
	info, err := os.Stat(r.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", r.path)
	}
	return nil
}

func (r fileRecorder) Stop(context.Context) (string, error) { return r.path, nil }

type clientFlags struct {
	email    string
	password string
}

func (f *clientFlags) register(fs *flag.FlagSet, cfg config.ClientConfig) {
	fs.StringVar(&f.email, "email", cfg.Email, "account email")
	fs.StringVar(&f.password, "password", cfg.Password, "account password")
}

func newSession(cfg config.Config, prober media.Prober) (*session.Context, error) {
	client, err := apiclient.New(apiclient.Config{BaseURL: cfg.Client.APIBaseURL, Timeout: cfg.Client.Timeout})
	if err != nil {
		return nil, err
	}
	return session.New(session.Dependencies{Identity: client, Media: client, Videos: client, Prober: prober}), nil
}

// signIn builds a session context against the configured API and signs in
// through the sign-in form.
func signIn(ctx context.Context, cfg config.Config, creds clientFlags, prober media.Prober) (*session.Context, error) {
	sc, err := newSession(cfg, prober)
	if err != nil {
		return nil, err
	}
	if _, err := (forms.SignIn{Email: creds.email, Password: creds.password}).Submit(ctx, sc); err != nil {
		sc.Close()
		return nil, signInError(err, creds.email)
	}
	onboard(ctx, forms.NewFirstTime(forms.NewFileStore(cfg.Client.StateFile)), os.Stdout)
	return sc, nil
}

func signInError(err error, email string) error {
	if errors.Is(err, forms.ErrRejected) {
		return fmt.Errorf("%w as %s", errSignInFailed, email)
	}
	return fmt.Errorf("%w: %w", errSignInFailed, err)
}

// onboard prints the welcome text on the first signed-in run.
func onboard(ctx context.Context, first *forms.FirstTime, w io.Writer) {
	if !first.IsFirstTime(ctx) {
		return
	}
	fmt.Fprintln(w, welcome)
	if err := first.Set(ctx, false); err != nil {
		logging.FromContext(ctx).Warn("record onboarding", "error", err)
	}
}

// runSignUp registers an account through the sign-up form.
func runSignUp(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	var creds clientFlags
	creds.register(fs, cfg.Client)
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sc, err := newSession(cfg, nil)
	if err != nil {
		return err
	}
	defer sc.Close()

	account, err := forms.SignUp{Name: *name, Email: creds.email, Password: creds.password}.Submit(ctx, sc)
	if err != nil {
		if errors.Is(err, forms.ErrRejected) {
			return fmt.Errorf("sign up as %s failed", creds.email)
		}
		return err
	}
	onboard(ctx, forms.NewFirstTime(forms.NewFileStore(cfg.Client.StateFile)), os.Stdout)
	fmt.Println(account.UID)
	return nil
}

// runPost drives the capture machine over an existing file, through the
// same pipeline a camera recording takes.
func runPost(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	var creds clientFlags
	creds.register(fs, cfg.Client)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: post [-email e] [-password p] <video file>")
	}

	prober := media.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout)
	sc, err := signIn(ctx, cfg, creds, prober)
	if err != nil {
		return err
	}
	defer sc.Close()

	machine := capture.New(capture.Config{
		Recorder: fileRecorder{path: fs.Arg(0)},
		Poster:   sc,
		Prober:   prober,
		Notifier: notify.Log(ctx),
	})
	defer machine.Close()

	machine.SetPermission(true)
	if err := machine.Shutter(ctx); err != nil {
		return err
	}
	if err := machine.Shutter(ctx); err != nil {
		return err
	}
	id, err := machine.Post(ctx)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// runFeed loads the feed as the feed screen would and prints it.
func runFeed(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	var creds clientFlags
	creds.register(fs, cfg.Client)
	pages := fs.Int("pages", 1, "number of pages to load")
	pageSize := fs.Int("page-size", session.DefaultPageSize, "videos per page")
	active := fs.Int("active", 0, "index of the item scrolled into view")
	like := fs.String("like", "", "toggle the like on this video id before printing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sc, err := signIn(ctx, cfg, creds, nil)
	if err != nil {
		return err
	}
	defer sc.Close()

	model := feed.New(sc, notify.Log(ctx), *pageSize)
	if err := model.Focus(ctx); err != nil {
		return err
	}
	for i := 1; i < *pages && model.HasMore(); i++ {
		if err := model.LoadMore(ctx); err != nil {
			return err
		}
	}
	// One unit per item, so the offset is the index itself.
	model.ScrollSettled(float64(*active), 1)

	if *like != "" {
		if err := model.ToggleLike(ctx, *like); err != nil {
			return err
		}
	}

	logging.FromContext(ctx).Debug("feed loaded", "view", model.View().String(), "more", model.HasMore())
	return printFeed(os.Stdout, model)
}

func printFeed(w io.Writer, model *feed.Model) error {
	if model.View() == feed.Empty {
		_, err := fmt.Fprintln(w, "No videos yet.")
		return err
	}
	states := model.States()
	for i, item := range model.Items() {
		liked := " "
		if item.Liked {
			liked = "♥"
		}
		if _, err := fmt.Fprintf(w, "%3d %-10s %s %4d  %-20s %s\n",
			i, states[i], liked, item.Likes, item.Video.PosterName, item.Video.ID); err != nil {
			return err
		}
	}
	return nil
}
