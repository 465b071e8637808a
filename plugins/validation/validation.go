// Package validation implements the validation capability as a
// wsrouter.Plugin: an early inbound middleware that validates the full
// envelope against its route's schema, an outbound wrapper for
// Send/Reply/Progress, and the RPC registrar behind Router.Rpc.
//
// All schema access goes through the validate.Adapter interface, so the
// plugin never hard-codes a schema library.
package validation

import (
	"encoding/json"

	"github.com/wsrouter/wsrouter"
	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/logging"
	"github.com/wsrouter/wsrouter/schema"
	"github.com/wsrouter/wsrouter/validate"
)

// Plugin wires a validate.Adapter into a Router's inbound/outbound paths
// and supplies Router.Rpc.
type Plugin struct {
	adapter                 validate.Adapter
	defaultValidateOutgoing bool
	warnIncompleteRPC       bool
}

// New constructs the validation plugin over adapter.
func New(adapter validate.Adapter) *Plugin {
	return &Plugin{adapter: adapter}
}

func (p *Plugin) Name() string { return "validation" }

func (p *Plugin) Apply(api wsrouter.PluginAPI) error {
	p.defaultValidateOutgoing = api.Config().ValidateOutgoing
	p.warnIncompleteRPC = api.Config().WarnIncompleteRPC

	// The plugin installs both the validation middleware and the RPC
	// registrar behind Router.Rpc, so it marks both capabilities.
	api.AddCapability(wsrouter.CapValidation | wsrouter.CapRPC)
	api.RegisterGlobalMiddleware(p.inboundMiddleware)
	api.SetOutboundValidator(p.validateOutbound)
	api.SetRPCRegister(func(schemaInstance any, middleware []wsrouter.Middleware, handler wsrouter.HandlerFunc) {
		p.registerRPC(api, schemaInstance, middleware, handler)
	})
	return nil
}

func (p *Plugin) inboundMiddleware(ctx *wsrouter.Context, next wsrouter.Next) error {
	schemaInstance := ctx.RouteSchema()
	if schemaInstance == nil {
		return next(ctx)
	}

	envelope := map[string]any{"type": ctx.Type, "meta": ctx.Meta, "payload": json.RawMessage(ctx.Payload)}
	body, err := json.Marshal(envelope)
	if err != nil {
		return errs.Wrap(errs.ValidationError, "failed to re-encode envelope for validation", err)
	}

	result := p.adapter.SafeParse(schemaInstance, body)
	if !result.Ok {
		return errs.New(errs.ValidationError, "inbound payload failed validation").WithDetails(result.Issues)
	}
	return next(ctx)
}

func (p *Plugin) shouldValidateOutgoing(schemaInstance any) bool {
	if schemaInstance == nil {
		return p.defaultValidateOutgoing
	}
	opts := schema.SchemaOpts(schemaInstance)
	if opts.ValidateOutgoing != nil {
		return *opts.ValidateOutgoing
	}
	return p.defaultValidateOutgoing
}

func (p *Plugin) validateOutbound(schemaInstance any, payload any, code errs.Code) error {
	if !p.shouldValidateOutgoing(schemaInstance) {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(code, "failed to marshal outbound payload for validation", err)
	}
	if schemaInstance == nil {
		return nil
	}
	result := p.adapter.SafeParse(schemaInstance, body)
	if !result.Ok {
		return errs.New(code, "outbound payload failed validation").WithDetails(result.Issues)
	}
	return nil
}

// registerRPC installs the handler wrapped with RPC admission and
// cancellation-context binding, then registers it as a normal route.
// schemaInstance must describe a KindRPC schema with a Response schema
// present; violating either is a configuration-time panic.
func (p *Plugin) registerRPC(api wsrouter.PluginAPI, schemaInstance any, middleware []wsrouter.Middleware, handler wsrouter.HandlerFunc) {
	d, ok := schema.Describe(schemaInstance)
	if !ok || d.Kind != schema.KindRPC || d.Response == nil {
		errs.ConfigPanic("wsrouter: Rpc requires a schema registered with schema.KindRPC and a Response schema")
	}

	wrapped := func(ctx *wsrouter.Context) error {
		if ctx.CorrelationID == "" {
			return errs.New(errs.State, "RPC message is missing a correlationId")
		}
		// The admitted context is retrievable from the handler through
		// ctx.Cancellation(); admission only needs the ok bit here.
		if _, admitted := api.RPCAdmit(ctx.ClientID, ctx.CorrelationID); !admitted {
			return errs.New(errs.RPCInflightLimit, "too many concurrent RPCs for this connection")
		}

		err := handler(ctx)
		if err != nil {
			api.RPCAbort(ctx.ClientID, ctx.CorrelationID)
			return err
		}
		if p.warnIncompleteRPC && !api.Config().Production && !api.RPCIsTerminal(ctx.ClientID, ctx.CorrelationID) {
			api.Logger().Warn("RPC handler returned without calling Reply or Error", logging.String("type", ctx.Type), logging.String("correlationId", ctx.CorrelationID))
		}
		return nil
	}

	typ := schema.TypeOf(schemaInstance)
	api.RegisterRoute(&wsrouter.RouteEntry{Type: typ, Schema: schemaInstance, Middleware: middleware, Handler: wrapped})
}

var _ wsrouter.Plugin = (*Plugin)(nil)
