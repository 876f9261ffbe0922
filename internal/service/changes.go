package service

import "github.com/spec-kit/ticket-tracker/internal/domain"

// DetectChanges compares current with the fields requested in update.
//
// Status, priority and assignee produce a change entry when the resolved new
// value differs from the old one, in that order. Name and description are
// snapshotted into the payload but never listed as changes. Assignees are
// normalized first so "" and nil compare equal.
func DetectChanges(current domain.Ticket, update domain.TicketUpdate, note string) (domain.LogPayload, domain.TicketStatus, domain.TicketStatus) {
	payload := domain.LogPayload{
		Version: domain.LogPayloadVersion,
		Note:    note,
		Changes: []domain.Change{},
	}

	oldStatus := current.Status
	newStatus := oldStatus
	if update.Status != nil {
		newStatus = *update.Status
	}
	if newStatus != oldStatus {
		payload.Changes = append(payload.Changes, domain.Change{
			Field: domain.ChangeFieldStatus,
			From:  oldStatus.Code(),
			To:    newStatus.Code(),
		})
	}

	oldPriority := current.Priority
	newPriority := oldPriority
	if update.Priority != nil {
		newPriority = *update.Priority
	}
	payload.OldPriority = &oldPriority
	payload.NewPriority = &newPriority
	if newPriority != oldPriority {
		payload.Changes = append(payload.Changes, domain.Change{
			Field: domain.ChangeFieldPriority,
			From:  oldPriority.Code(),
			To:    newPriority.Code(),
		})
	}

	oldAssignee := domain.NormalizeAssignee(current.AssigneeID)
	newAssignee := oldAssignee
	if update.AssignedTo != nil {
		newAssignee = domain.NormalizeAssignee(update.AssignedTo)
	}
	payload.OldAssignee = oldAssignee
	payload.NewAssignee = newAssignee
	if !sameAssignee(oldAssignee, newAssignee) {
		payload.Changes = append(payload.Changes, domain.Change{
			Field: domain.ChangeFieldAssignee,
			From:  assigneeValue(oldAssignee),
			To:    assigneeValue(newAssignee),
		})
	}

	oldName, newName := current.Name, current.Name
	if update.Name != nil {
		newName = *update.Name
	}
	payload.OldName, payload.NewName = &oldName, &newName

	oldDescription, newDescription := current.Description, current.Description
	if update.Description != nil {
		newDescription = *update.Description
	}
	payload.OldDescription, payload.NewDescription = &oldDescription, &newDescription

	return payload, oldStatus, newStatus
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// assigneeValue unwraps the pointer so a cleared assignee encodes as null
// and compares equal to a decoded one.
func assigneeValue(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}
