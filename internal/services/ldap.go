package services

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/models"
	"github.com/go-ldap/ldap/v3"
)

// LDAPService authenticates against a campus directory.
type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

type LDAPUser struct {
	DN    string
	Email string
	Name  string
	Role  string
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled
}

// Authenticate looks the user up by email with the service account, then
// binds as that user to verify the password.
func (s *LDAPService) Authenticate(email, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("LDAP is not enabled")
	}
	if password == "" {
		// an empty password would be an unauthenticated bind and always succeed
		return nil, fmt.Errorf("invalid credentials")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var conn *ldap.Conn
	var err error
	if s.config.UseSSL {
		conn, err = ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	} else {
		conn, err = ldap.DialURL("ldap://" + addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	attrs := []string{"dn", "cn", "mail", "displayName"}
	if s.config.RoleAttribute != "" {
		attrs = append(attrs, s.config.RoleAttribute)
	}
	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(email)),
		attrs,
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &LDAPUser{
		DN:    entry.DN,
		Email: entry.GetAttributeValue("mail"),
		Name:  entry.GetAttributeValue("displayName"),
		Role:  s.roleFor(entry.GetAttributeValues(s.config.RoleAttribute)),
	}
	if user.Email == "" {
		user.Email = email
	}
	if user.Name == "" {
		user.Name = entry.GetAttributeValue("cn")
	}
	return user, nil
}

// roleFor maps directory affiliation values to an Econify role.
func (s *LDAPService) roleFor(values []string) string {
	for _, v := range values {
		for _, p := range s.config.ProfessorValues {
			if strings.EqualFold(v, p) {
				return models.RoleProfessor
			}
		}
	}
	return models.RoleStudent
}
