package bookings

type Status string

const (
	StatusPending            Status = "pending"
	StatusConfirmed          Status = "confirmed"
	StatusTechnicianAssigned Status = "technician-assigned"
	StatusInProgress         Status = "in-progress"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:            {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:          {StatusTechnicianAssigned: true, StatusCancelled: true},
	StatusTechnicianAssigned: {StatusTechnicianAssigned: true, StatusInProgress: true, StatusCancelled: true},
	StatusInProgress:         {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:          {},
	StatusCancelled:          {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal statuses accept no further changes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition allows technician-assigned to repeat so an admin can
// reassign the technician.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
