package httpapi

import (
	"time"

	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

type taskJSON struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	DueDate   *time.Time `json:"dueDate"`
	CreatedAt time.Time  `json:"createdAt"`
	UserID    string     `json:"userId"`
}

type stateJSON struct {
	Owner   string     `json:"owner"`
	Filter  string     `json:"filter"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
	Tasks   []taskJSON `json:"tasks"`
}

type tasksResponse struct {
	Filter string     `json:"filter"`
	Tasks  []taskJSON `json:"tasks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type addTaskRequest struct {
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
}

type toggleRequest struct {
	Completed *bool `json:"completed"`
}

type filterRequest struct {
	Filter string `json:"filter"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func toTaskJSON(list []service.Task) []taskJSON {
	out := make([]taskJSON, len(list))
	for i, t := range list {
		out[i] = taskJSON{
			ID:        t.ID,
			Title:     t.Title,
			Completed: t.Completed,
			DueDate:   t.DueDate,
			CreatedAt: t.CreatedAt,
			UserID:    t.UserID,
		}
	}
	return out
}

// toStateJSON renders a snapshot with its filter applied.
func toStateJSON(s tasks.State) stateJSON {
	return stateJSON{
		Owner:   s.Owner,
		Filter:  string(s.Filter),
		Loading: s.Loading,
		Error:   s.Err,
		Tasks:   toTaskJSON(s.Filtered()),
	}
}
