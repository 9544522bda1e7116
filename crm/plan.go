// plan.go - Plan catalog consulted by the commission calculator.
//
// The catalog is the source of truth for which plan names are sellable.
// A sale naming an unknown plan is a validation error, never a silently
// defaulted rate.
package crm

// Plan is one sellable subscription plan.
type Plan struct {
	Name         string
	DisplayName  string
	MonthlyPrice Money
}

// PlanCatalog maps plan name to plan.
type PlanCatalog map[string]Plan

// DefaultPlanCatalog lists the production plans.
func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		"starter": {
			Name:         "starter",
			DisplayName:  "Starter",
			MonthlyPrice: NewMoney(9900), // $99/mo
		},
		"premium": {
			Name:         "premium",
			DisplayName:  "Premium",
			MonthlyPrice: NewMoney(19900), // $199/mo
		},
		"elite": {
			Name:         "elite",
			DisplayName:  "Elite",
			MonthlyPrice: NewMoney(34900), // $349/mo
		},
	}
}

// Lookup returns the plan for a name, or ErrUnknownPlan.
func (pc PlanCatalog) Lookup(name string) (Plan, error) {
	p, ok := pc[name]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}
