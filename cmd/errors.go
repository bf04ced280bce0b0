package cmd

import (
	"errors"
	"net/url"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/internal/tui"
	"github.com/starterkit/starter/internal/utils"
	"github.com/starterkit/starter/pkg/archive"
	"github.com/starterkit/starter/pkg/metadata"
	"github.com/starterkit/starter/pkg/request"
	"github.com/starterkit/starter/pkg/resolve"
)

// presentError maps pipeline failures to messages with a suggested fix.
// Errors that are already user facing are returned as is.
func presentError(err error) error {
	var ue *utils.UserError
	if errors.As(err, &ue) {
		return err
	}
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		return err
	}

	var re *client.RequestError
	var urlErr *url.Error
	switch {
	case errors.Is(err, resolve.ErrPromptInterrupted) && errors.Is(err, tui.ErrNoTerminal):
		return utils.NewUserError("Cannot prompt without a terminal",
			"Run starter in a terminal or pass --non-interactive to use the defaults", err)
	case errors.Is(err, resolve.ErrPromptInterrupted):
		return utils.NewUserError("Project generation cancelled",
			"Pass --non-interactive to accept the defaults without prompting", err)
	case errors.As(err, &re):
		if re.Body != "" {
			return utils.NewUserError("The service rejected the request: "+re.Body,
				"Check the selected options with 'starter steps'", err)
		}
		return utils.NewUserError("The service answered with an error",
			"Check that --url points to an Initializr compatible service", err)
	case errors.Is(err, metadata.ErrMalformedMetadata):
		return utils.NewUserError("The service metadata could not be read",
			"Check that --url points to an Initializr compatible service", err)
	case errors.Is(err, request.ErrMissingActionStep):
		return utils.NewUserError("No project type could be determined",
			"Pass --type with one of the project types listed by 'starter steps'", err)
	case errors.Is(err, archive.ErrIncompleteTransfer):
		return utils.NewUserError("The download was cut short",
			"Run the command again", err)
	case errors.Is(err, archive.ErrIO):
		return utils.NewUserError("The project could not be written",
			"Check permissions and free space at the destination", err)
	case errors.As(err, &urlErr):
		return utils.NewUserError("Could not reach the service",
			"Check your network connection and the --url flag", err)
	default:
		return err
	}
}
