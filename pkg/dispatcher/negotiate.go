package dispatcher

import (
	"strings"

	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/request"
	"github.com/morezero/channel-gateway/pkg/types"
)

// Reserved argument names. Neither is checked against the allowed set.
const (
	ArgType  = request.ArgType
	ArgValue = request.ArgValue
)

// EffectiveRequest is the per-call outcome of negotiation.
type EffectiveRequest struct {
	ID         string
	RawChannel string
	Channel    string
	IsSet      bool
	Type       types.DataType
	Config     *registry.OperationConfig
	Arguments  []request.Argument
}

// Op names the direction, "get" or "set".
func (e *EffectiveRequest) Op() string {
	if e.IsSet {
		return "set"
	}
	return "get"
}

// IsSetRequest reports whether args carry a VALUE argument.
func IsSetRequest(args []request.Argument) bool {
	for _, a := range args {
		if a.Is(ArgValue) {
			return true
		}
	}
	return false
}

// Negotiate classifies the request as get or set and computes its effective
// type from the configuration of that direction and any TYPE override.
func Negotiate(req *request.Request, getter, setter *registry.OperationConfig) (*EffectiveRequest, error) {
	var typeArg string
	isSet := false
	for _, a := range req.Arguments {
		switch {
		case a.Is(ArgType):
			typeArg = strings.ToUpper(strings.TrimSpace(a.Value))
		case a.Is(ArgValue):
			isSet = true
		}
	}

	eff := &EffectiveRequest{
		ID:         req.ID,
		RawChannel: req.Channel,
		Channel:    req.Channel,
		IsSet:      isSet,
		Arguments:  req.Arguments,
		Config:     getter,
	}
	if isSet {
		eff.Config = setter
	}
	configured := registry.TypeOf(eff.Config)

	if configured == types.None || configured == types.Alias {
		return nil, newError(KindUnsupportedOperation, map[string]string{"channel": req.Channel, "op": eff.Op()},
			"channel %s does not support %s", req.Channel, eff.Op())
	}

	if typeArg == "" {
		if configured.IsMeta() {
			return nil, newError(KindMissingTypeArgument, map[string]interface{}{"allowed": allowedTypes(configured, isSet)},
				"channel %s requires a TYPE argument for %s: one of %s",
				req.Channel, eff.Op(), strings.Join(allowedTypes(configured, isSet), ", "))
		}
		eff.Type = configured
	} else {
		parsed, err := types.Parse(typeArg)
		if err != nil {
			return nil, newError(KindInvalidTypeArgument, map[string]interface{}{"type": typeArg, "allowed": allowedTypes(configured, isSet)},
				"invalid TYPE %s: must be one of %s", typeArg, strings.Join(allowedTypes(configured, isSet), ", "))
		}
		if !types.IsCompatible(parsed, configured) {
			return nil, newError(KindIncompatibleType, map[string]interface{}{"type": parsed, "allowed": allowedTypes(configured, isSet)},
				"TYPE %s is not compatible with channel %s: must be one of %s",
				parsed, req.Channel, strings.Join(allowedTypes(configured, isSet), ", "))
		}
		eff.Type = parsed
	}

	if eff.Type == types.Table && len(eff.Config.Fields) == 0 {
		return nil, newError(KindMisconfiguredChannel, map[string]string{"channel": req.Channel, "op": eff.Op()},
			"channel %s is configured to return TABLE for %s but defines no fields", req.Channel, eff.Op())
	}

	return eff, nil
}

// allowedTypes names the concrete types a TYPE argument may take against a
// configured type. A set against a meta-kind can only resolve to VOID or
// TABLE, the two set shapes the native layer implements.
func allowedTypes(configured types.DataType, isSet bool) []string {
	var out []string
	for _, t := range types.All() {
		if !t.IsConcrete() || !types.IsCompatible(t, configured) {
			continue
		}
		if isSet && configured.IsMeta() && t != types.Void && t != types.Table {
			continue
		}
		out = append(out, t.String())
	}
	return out
}
