// Package router dispatches typed commands from an upstream caller to the
// accounting services. Every command carries a schema; parameters are
// parsed and validated at this boundary and nothing untyped passes
// through. Validation and entity resolution never cause side effects: a
// ledger mutation happens only after both succeed, and at most once per
// call.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/services"
)

// Handler executes one command with fully coerced parameters.
type Handler func(ctx context.Context, p *ParamSet) (any, error)

type command struct {
	name     string
	required []paramSpec
	optional []paramSpec
	handler  Handler
}

// Router holds the command registry and the services commands act
// through. Independent commands run concurrently; the only shared state
// is inside the services themselves.
type Router struct {
	backend  ledger.Backend
	resolver services.ResolverService
	workweek services.WorkWeekService
	guard    services.DupGuardService
	posting  services.PostingService
	policy   services.PolicyService
	jobcost  services.JobCostService
	audit    services.AuditService
	cfg      config.StagingConfig

	commands map[string]*command
}

func New(
	backend ledger.Backend,
	resolver services.ResolverService,
	workweek services.WorkWeekService,
	guard services.DupGuardService,
	posting services.PostingService,
	policy services.PolicyService,
	jobcost services.JobCostService,
	audit services.AuditService,
	cfg config.StagingConfig,
) *Router {
	r := &Router{
		backend:  backend,
		resolver: resolver,
		workweek: workweek,
		guard:    guard,
		posting:  posting,
		policy:   policy,
		jobcost:  jobcost,
		audit:    audit,
		cfg:      cfg,
		commands: make(map[string]*command),
	}
	r.registerWorkBillCommands()
	r.registerEntityCommands()
	r.registerCheckCommands()
	r.registerInvoiceCommands()
	r.registerPurchaseCommands()
	return r
}

func (r *Router) register(name string, required, optional []paramSpec, h Handler) {
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("command %s registered twice", name))
	}
	r.commands[name] = &command{name: name, required: required, optional: optional, handler: h}
}

// Commands lists every registered command name, sorted.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one command. Validation order: unknown command, missing
// required key, coercion failure, unknown key; only then do handlers
// resolve entities and touch the ledger.
func (r *Router) Execute(ctx context.Context, name string, raw map[string]any) common.Envelope {
	digest := paramsDigest(raw)

	cmd, ok := r.commands[name]
	if !ok {
		err := common.NewError(common.ErrUnknownCommand, "unknown command %q", name)
		r.audit.LogCommand(ctx, name, digest, "rejected: unknown command")
		return common.ErrEnvelope(err)
	}

	params, err := cmd.parse(raw)
	if err != nil {
		r.audit.LogCommand(ctx, name, digest, "rejected: "+err.Error())
		return common.ErrEnvelope(err)
	}

	data, err := cmd.handler(ctx, params)
	if err != nil {
		r.audit.LogCommand(ctx, name, digest, "failed: "+err.Error())
		return common.ErrEnvelope(err)
	}
	r.audit.LogCommand(ctx, name, digest, "ok")
	return common.OKEnvelope(data)
}

// paramsDigest renders submitted parameters for the audit trail. Maps
// marshal with sorted keys, so identical calls produce identical digests.
func paramsDigest(raw map[string]any) string {
	if len(raw) == 0 {
		return ""
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%d parameters (unencodable)", len(raw))
	}
	const maxDigest = 512
	if len(b) > maxDigest {
		return string(b[:maxDigest]) + "..."
	}
	return string(b)
}

func (c *command) parse(raw map[string]any) (*ParamSet, error) {
	known := make(map[string]paramSpec, len(c.required)+len(c.optional))
	for _, spec := range c.required {
		known[spec.key] = spec
	}
	for _, spec := range c.optional {
		known[spec.key] = spec
	}

	p := &ParamSet{values: make(map[string]any, len(raw))}

	for _, spec := range c.required {
		v, present := raw[spec.key]
		if !present || v == nil {
			return nil, common.FieldError(common.ErrMissingParameter, spec.key,
				"%s requires parameter %q", c.name, spec.key)
		}
		coerced, err := coerce(spec, v)
		if err != nil {
			return nil, err
		}
		p.values[spec.key] = coerced
	}

	for _, spec := range c.optional {
		v, present := raw[spec.key]
		if !present || v == nil {
			if spec.def != nil {
				p.values[spec.key] = spec.def
			}
			continue
		}
		coerced, err := coerce(spec, v)
		if err != nil {
			return nil, err
		}
		p.values[spec.key] = coerced
	}

	for key := range raw {
		if _, ok := known[key]; !ok {
			return nil, common.FieldError(common.ErrInvalidParameter, key,
				"%s does not accept parameter %q", c.name, key)
		}
	}
	return p, nil
}
