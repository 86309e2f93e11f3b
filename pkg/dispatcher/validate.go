package dispatcher

import (
	"strings"

	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/request"
)

// ValidateArguments checks every non-reserved argument against the allowed
// set of the operation.
func ValidateArguments(args []request.Argument, cfg *registry.OperationConfig) error {
	for _, a := range args {
		if a.Is(ArgType) || a.Is(ArgValue) {
			continue
		}
		if !cfg.Allows(a.Name) {
			allowed := cfg.Arguments()
			if allowed == nil {
				allowed = []string{}
			}
			return newError(KindUnknownArgument, map[string]interface{}{"argument": a.Name, "allowed": allowed},
				"unknown argument %s: allowed arguments are [%s]", a.Name, strings.Join(allowed, ", "))
		}
	}
	return nil
}
