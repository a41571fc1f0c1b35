package assignment

import "github.com/example/field-dispatch/internal/models"

// allowedTransitions is the job lifecycle as a directed graph.
// completed and canceled are terminal.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusPending:   {models.StatusScheduled, models.StatusCanceled},
	models.StatusScheduled: {models.StatusCompleted, models.StatusCanceled},
	models.StatusCompleted: {},
	models.StatusCanceled:  {},
}

// CanTransition reports whether from -> to is an allowed lifecycle edge.
func CanTransition(from, to models.Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanAccept is the acceptance guard: the job must still be pending and
// the actor must either be on the assignment or hold an admin role.
func CanAccept(job *models.ServiceRequest, actor models.User) bool {
	if job == nil || job.Status != models.StatusPending {
		return false
	}
	return job.Assigned(actor.ID) || actor.IsAdmin()
}
