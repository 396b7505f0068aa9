// Package seed installs the bundled vertical automation workflows for a
// tenant. Each vertical ships a small starter set; tenants edit or disable
// them like any other definition.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// Vertical identifies an industry automation bundle.
type Vertical string

const (
	VerticalFintech  Vertical = "fintech"
	VerticalD2C      Vertical = "d2c"
	VerticalAgencies Vertical = "agencies"
)

// WorkflowCreator persists seeded definitions. Satisfied by store.Store.
type WorkflowCreator interface {
	CreateWorkflow(ctx context.Context, wf *store.Workflow) error
}

// Result reports how many definitions were installed and which failed.
type Result struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// Apply installs the vertical's bundle for the tenant. Creation is fail-open:
// one definition failing (typically because it already exists) does not stop
// the rest.
func Apply(ctx context.Context, creator WorkflowCreator, tenantID string, vertical Vertical, logger *slog.Logger) (*Result, error) {
	var defs []schema.WorkflowDefinition
	switch vertical {
	case VerticalFintech:
		defs = fintechAutomations()
	case VerticalD2C:
		defs = d2cAutomations()
	case VerticalAgencies:
		defs = agencyAutomations()
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown vertical %q", vertical)
	}

	result := &Result{}
	for i := range defs {
		def := defs[i]
		def.ID = uuid.New().String()
		def.TenantID = tenantID

		if err := creator.CreateWorkflow(ctx, &store.Workflow{Definition: def}); err != nil {
			logger.Warn("seed workflow not created",
				slog.String("tenant_id", tenantID),
				slog.String("name", def.Name),
				slog.String("error", err.Error()),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", def.Name, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

func fintechAutomations() []schema.WorkflowDefinition {
	return []schema.WorkflowDefinition{
		{
			Name:        "Fintech: Compliance Risk Alert",
			Description: "Alert leadership when compliance risk is identified",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-compliance",
				Condition: &schema.Condition{
					Field:    "changes.complianceStatus",
					Operator: schema.OpEquals,
					Value:    "At Risk",
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionNotify,
					Config: mustConfig(schema.NotifyConfig{
						Type:    "warning",
						Title:   "Compliance Risk Identified",
						Message: "A deal has been flagged with compliance risk",
						UserID:  "ceo",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "Fintech: API Integration Stuck",
			Description: "Escalate to tech team if API evaluation stage stalls",
			Trigger:     schema.Trigger{Type: schema.TriggerSchedule, Cron: "0 9 * * *"},
			Steps: []schema.WorkflowStep{{
				ID: "check-api-stage",
				Condition: &schema.Condition{
					Field:    "deal.stage",
					Operator: schema.OpEquals,
					Value:    "api-evaluation",
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionCreateTask,
					Config: mustConfig(schema.TaskConfig{
						Title:       "Follow up on API Integration",
						Description: "Deal has been in API evaluation for more than 5 days",
						Priority:    "high",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "Fintech: Missing Go-Live Date",
			Description: "Send reminder if go-live date not set in pricing stage",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-go-live",
				Condition: &schema.Condition{
					Field:    "changes.stage",
					Operator: schema.OpEquals,
					Value:    "pricing-discussion",
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionSendMessage,
					Config: mustConfig(schema.MessageConfig{
						Subject: "Set Your Go-Live Timeline",
						Body:    "Please set your target go-live date to help us plan better.",
					}),
				}},
			}},
			IsActive: true,
		},
	}
}

func d2cAutomations() []schema.WorkflowDefinition {
	return []schema.WorkflowDefinition{
		{
			Name:        "D2C: High Inventory Alert",
			Description: "Offer advanced forecasting for high inventory",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-inventory",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Inventory Size",
					Operator: schema.OpGreaterThan,
					Value:    10000,
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionSendMessage,
					Config: mustConfig(schema.MessageConfig{
						Subject: "Advanced Forecasting Available",
						Body:    "With your inventory size, you may benefit from our advanced forecasting features.",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "D2C: Multiple Suppliers Offer",
			Description: "Offer supplier sync for multiple suppliers",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-suppliers",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Supplier Count",
					Operator: schema.OpGreaterThan,
					Value:    3,
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionSendMessage,
					Config: mustConfig(schema.MessageConfig{
						Subject: "Supplier Sync Feature",
						Body:    "With multiple suppliers, our supplier sync feature can streamline your operations.",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "D2C: Multi-Channel Dashboard",
			Description: "Offer unified dashboard demo for multiple channels",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-channels",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Sales Channels",
					Operator: schema.OpIn,
					Value:    []any{"Shopify", "Instagram", "Website", "Amazon"},
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionCreateTask,
					Config: mustConfig(schema.TaskConfig{
						Title:       "Schedule Unified Dashboard Demo",
						Description: "Customer has multiple sales channels, offer the unified dashboard",
						Priority:    "medium",
					}),
				}},
			}},
			IsActive: true,
		},
	}
}

func agencyAutomations() []schema.WorkflowDefinition {
	return []schema.WorkflowDefinition{
		{
			Name:        "Agency: Team Collaboration Offer",
			Description: "Offer collaboration features for larger teams",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-team-size",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Team Size",
					Operator: schema.OpGreaterThan,
					Value:    5,
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionSendMessage,
					Config: mustConfig(schema.MessageConfig{
						Subject: "Team Collaboration Features",
						Body:    "With your team size, our collaboration features can improve productivity.",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "Agency: Time Tracking Demo",
			Description: "Offer time tracking demo for hourly billing",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-billing",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Billing Model",
					Operator: schema.OpEquals,
					Value:    "Hourly",
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionCreateTask,
					Config: mustConfig(schema.TaskConfig{
						Title:       "Schedule Time Tracking Demo",
						Description: "Customer uses hourly billing, offer time tracking features",
						Priority:    "high",
					}),
				}},
			}},
			IsActive: true,
		},
		{
			Name:        "Agency: Project Dashboard Demo",
			Description: "Offer project dashboard for multiple projects",
			Trigger:     schema.Trigger{Type: schema.TriggerEvent, Event: schema.EventDealUpdated},
			Steps: []schema.WorkflowStep{{
				ID: "check-projects",
				Condition: &schema.Condition{
					Field:    "deal.customFields.Project Types",
					Operator: schema.OpIn,
					Value:    []any{"Web Development", "Mobile App", "Design"},
				},
				Actions: []schema.WorkflowAction{{
					Type: schema.ActionSendMessage,
					Config: mustConfig(schema.MessageConfig{
						Subject: "Project Dashboard Demo",
						Body:    "Our project dashboard can help you manage multiple projects efficiently.",
					}),
				}},
			}},
			IsActive: true,
		},
	}
}

func mustConfig(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
