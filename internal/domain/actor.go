package domain

import "strings"

type Role string

const (
	RoleMember Role = "MEMBER"
	RolePastor Role = "PASTOR"
	RoleAdmin  Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleMember, RolePastor, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsPastor() bool { return a.Role == RolePastor }
func (a Actor) IsMember() bool { return a.Role == RoleMember }

func (a Actor) Valid() bool {
	if strings.TrimSpace(a.ID) == "" {
		return false
	}
	_, ok := ParseRole(string(a.Role))
	return ok
}

// Capability checks. Every authorization decision in the services goes
// through one of these.

func CanManageAvailability(a Actor, pastorID string) bool {
	return a.IsAdmin() || (a.IsPastor() && a.ID == pastorID)
}

func CanRequest(a Actor, pastorID string) bool {
	return (a.IsMember() || a.IsAdmin()) && a.ID != pastorID
}

func CanConfirm(a Actor, appt Appointment) bool {
	return a.IsAdmin() || (a.IsPastor() && a.ID == appt.PastorID)
}

// CanCancel lets either party call off the meeting.
func CanCancel(a Actor, appt Appointment) bool {
	return CanConfirm(a, appt) || a.ID == appt.MemberID
}

func CanDelete(a Actor, appt Appointment) bool {
	return CanConfirm(a, appt)
}

func CanEditRequest(a Actor, appt Appointment) bool {
	return a.ID == appt.MemberID
}

func CanView(a Actor, appt Appointment) bool {
	return a.IsAdmin() || a.ID == appt.PastorID || a.ID == appt.MemberID
}
