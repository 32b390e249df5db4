package validation

import (
	"github.com/go-chi/chi/v5"
)

// Services bundles everything the validation API needs.
type Services struct {
	Engine    *Engine
	Store     *Store
	Approvals *ApprovalStore
	Plans     *PlanEngine
	Configs   *ConfigStore
	Scheduler *Scheduler
}

// Router creates a chi.Router for the validation workflow API.
func Router(s Services) chi.Router {
	r := chi.NewRouter()

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", CreateRequestHandler(s.Engine))
		r.Get("/", ListRequestsHandler(s.Store, s.Engine.machine))
		r.Route("/{requestId}", func(r chi.Router) {
			r.Get("/", GetRequestHandler(s.Store, s.Engine.machine))
			r.Post("/transition", TransitionHandler(s.Engine))
			r.Post("/resume", ResumeHandler(s.Engine))
			r.Post("/resubmit", ResubmitHandler(s.Engine))
			r.Post("/assignments", AssignHandler(s.Engine))
			r.Post("/signoff", SignoffHandler(s.Engine))
			r.Post("/outcome", OutcomeHandler(s.Engine))
			r.Post("/submission", SubmissionHandler(s.Engine))
			r.Get("/history", HistoryHandler(s.Store))
			r.Get("/approvals", ListApprovalsHandler(s.Approvals))
			r.Post("/approvals", AddManualApprovalHandler(s.Engine))
			r.Get("/plan", GetPlanHandler(s.Plans))
			r.Patch("/plan", UpdatePlanHandler(s.Plans))
			r.Patch("/plan/components/{component}", UpdateComponentHandler(s.Plans))
			r.Post("/plan/force-reset", ForceResetPlanHandler(s.Plans))
		})
	})

	r.Route("/approvals/{approvalId}", func(r chi.Router) {
		r.Post("/decision", DecideApprovalHandler(s.Engine))
		r.Post("/withdraw", WithdrawApprovalHandler(s.Engine))
		r.Post("/void", VoidApprovalHandler(s.Engine))
		r.Post("/send-back", SendBackHandler(s.Engine))
	})

	r.Route("/approval-rules", func(r chi.Router) {
		r.Post("/", CreateRuleHandler(s.Approvals))
		r.Get("/", ListRulesHandler(s.Approvals))
		r.Get("/{ruleId}", GetRuleHandler(s.Approvals))
		r.Put("/{ruleId}", UpdateRuleHandler(s.Approvals))
		r.Delete("/{ruleId}", DeleteRuleHandler(s.Approvals))
	})

	r.Route("/plan-configurations", func(r chi.Router) {
		r.Post("/", PublishConfigHandler(s.Configs))
		r.Get("/", ListConfigsHandler(s.Configs))
		r.Get("/active", GetActiveConfigHandler(s.Configs))
		r.Get("/{configId}", GetConfigHandler(s.Configs))
		r.Post("/{configId}/activate", ActivateConfigHandler(s.Configs))
	})

	r.Get("/models/{modelId}/revalidation", RevalidationHandler(s.Scheduler))
	r.Post("/models/{modelId}/tier-cascade", TierCascadeHandler(s.Plans))
	r.Post("/models/{modelId}/force-reset", ForceResetModelHandler(s.Plans))
	r.Get("/revalidation", RevalidationReportHandler(s.Scheduler))

	return r
}
