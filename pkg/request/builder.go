// Package request turns resolved answers into the URL of the generated
// project archive.
package request

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/starterkit/starter/pkg/metadata"
)

// ErrMissingActionStep is returned when no answered action step selects a
// request path.
var ErrMissingActionStep = errors.New("missing action step")

type options struct {
	actionParam bool
}

// Option configures Build.
type Option func(*options)

// WithActionParam also sends the action step's own answer as a query
// parameter. Several items of the same action may share a path, e.g. Maven
// and Gradle projects are both served by /starter.zip and only the "type"
// parameter tells them apart.
func WithActionParam() Option {
	return func(o *options) { o.actionParam = true }
}

// Build replaces the path of base with the action chosen by the action step
// and sets the query to the non-empty answers of every other step, in order.
func Build(base string, responses []metadata.ResponseStep, opts ...Option) (*url.URL, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	actionIdx, path, err := actionPath(responses)
	if err != nil {
		return nil, err
	}

	params := lo.Filter(responses, func(r metadata.ResponseStep, i int) bool {
		if r.Response == "" {
			return false
		}
		return i != actionIdx || o.actionParam
	})

	u.Path = path
	u.RawPath = ""
	u.RawQuery = Encode(params)
	u.Fragment = ""
	return u, nil
}

// actionPath finds the answered action step and looks its answer up among
// that step's own items.
func actionPath(responses []metadata.ResponseStep) (int, string, error) {
	_, idx, ok := lo.FindIndexOf(responses, func(r metadata.ResponseStep) bool {
		_, isAction := r.Step.Kind.(metadata.Action)
		return isAction
	})
	if !ok {
		return -1, "", ErrMissingActionStep
	}

	resp := responses[idx]
	item, found := metadata.FindItem(resp.Step.Items(), resp.Response)
	if !found {
		return -1, "", fmt.Errorf("%w: %q is not an option of step %q", ErrMissingActionStep, resp.Response, resp.Step.Name)
	}
	return idx, item.Action, nil
}

// Encode renders name=value pairs joined by '&', keeping order. Values are
// percent-encoded with spaces as %20.
func Encode(responses []metadata.ResponseStep) string {
	pairs := lo.Map(responses, func(r metadata.ResponseStep, _ int) string {
		return escape(r.Name()) + "=" + escape(r.Response)
	})
	return strings.Join(pairs, "&")
}

func escape(value string) string {
	// QueryEscape turns a literal '+' into %2B, so every remaining '+' is a space.
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
