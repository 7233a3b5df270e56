package app

import (
	"time"

	"prdhub/api/internal/store"
)

// prdPayload is the JSON shape of a PRD in API responses.
func prdPayload(prd store.PRD) map[string]any {
	return map[string]any{
		"id":         prd.ID,
		"teamId":     prd.TeamID,
		"title":      prd.Title,
		"summary":    prd.Summary,
		"status":     prd.Status,
		"visibility": prd.Visibility,
		"createdBy":  prd.CreatedBy,
		"createdAt":  prd.CreatedAt.Format(time.RFC3339),
		"updatedAt":  prd.UpdatedAt.Format(time.RFC3339),
	}
}

func prdPayloads(prds []store.PRD) []map[string]any {
	out := make([]map[string]any, 0, len(prds))
	for _, prd := range prds {
		out = append(out, prdPayload(prd))
	}
	return out
}

func commentPayloads(comments []store.Comment) []map[string]any {
	out := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		payload := map[string]any{
			"id":        c.ID,
			"prdId":     c.PRDID,
			"userId":    c.UserID,
			"section":   c.Section,
			"position":  c.Position,
			"content":   c.Content,
			"resolved":  c.Resolved,
			"createdAt": c.CreatedAt.Format(time.RFC3339),
			"updatedAt": c.UpdatedAt.Format(time.RFC3339),
		}
		if c.ResolvedBy != "" {
			payload["resolvedBy"] = c.ResolvedBy
		}
		if c.ParentID != "" {
			payload["parentId"] = c.ParentID
		}
		out = append(out, payload)
	}
	return out
}
