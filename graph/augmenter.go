package graph

import (
	"context"
	"log/slog"

	"github.com/ggoodman/todolist-obo-go/auth"
	"github.com/ggoodman/todolist-obo-go/obo"
)

// Augmenter fetches the calling user's downstream profile by exchanging the
// caller's inbound assertion on-behalf-of and presenting the resulting token
// to the profile endpoint.
//
// Augment never fails the caller: any exchange, transport or decode failure
// yields a nil profile. The primary operation (typically a write) proceeds
// unaugmented.
type Augmenter struct {
	Exchanger *obo.Exchanger
	Client    *Client
	Log       *slog.Logger
}

// Augment returns the caller's downstream profile, or nil when augmentation
// is unavailable.
func (a *Augmenter) Augment(ctx context.Context, p auth.Principal) *Profile {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}

	tok, err := a.Exchanger.Exchange(ctx, p.Subject(), p.RawToken())
	if err != nil {
		log.WarnContext(ctx, "on-behalf-of exchange failed; skipping augmentation", slog.String("err", err.Error()))
		return nil
	}

	profile, err := a.Client.Me(ctx, tok.AccessToken)
	if err != nil {
		log.WarnContext(ctx, "downstream profile call failed; skipping augmentation", slog.String("err", err.Error()))
		return nil
	}
	return profile
}
