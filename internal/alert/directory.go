// Package alert turns scored findings into addressable, actionable alerts.
package alert

import "strings"

// TeamMember is one technician in the team directory.
type TeamMember struct {
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Supervisor string `yaml:"supervisor"`
}

// Directory resolves technicians to mail recipients. Unknown technicians get
// an address derived from their name so an incomplete directory never drops
// an alert.
type Directory struct {
	// Members maps technician names to directory entries.
	Members map[string]TeamMember `yaml:"members"`
	// Supervisors maps supervisor names to their addresses.
	Supervisors map[string]string `yaml:"supervisors"`
	// DefaultSupervisor receives copies for technicians without one.
	DefaultSupervisor string `yaml:"default_supervisor"`
	// ManagementEmail is CCed on immediate alerts.
	ManagementEmail string `yaml:"management_email"`
	// MailDomain builds fallback addresses for unknown technicians.
	MailDomain string `yaml:"mail_domain"`
}

// SetDefaults sets default values for missing directory fields.
func (d *Directory) SetDefaults() {
	if d.MailDomain == "" {
		d.MailDomain = "example.com"
	}
	if d.ManagementEmail == "" {
		d.ManagementEmail = "management@" + d.MailDomain
	}
}

// MemberEmail returns the technician's address, deriving first.last@domain
// when the directory has no entry.
func (d *Directory) MemberEmail(technician string) string {
	if m, ok := d.Members[technician]; ok && m.Email != "" {
		return m.Email
	}
	local := strings.ToLower(strings.Join(strings.Fields(technician), "."))
	return local + "@" + d.MailDomain
}

// SupervisorEmail returns the address of the technician's supervisor, or the
// default supervisor's address, or empty when neither is configured.
func (d *Directory) SupervisorEmail(technician string) string {
	name := d.DefaultSupervisor
	if m, ok := d.Members[technician]; ok && m.Supervisor != "" {
		name = m.Supervisor
	}
	if name == "" {
		return ""
	}
	if addr, ok := d.Supervisors[name]; ok {
		return addr
	}
	// A supervisor may also be a regular directory member.
	if m, ok := d.Members[name]; ok && m.Email != "" {
		return m.Email
	}
	return ""
}
