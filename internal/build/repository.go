package build

import (
	"fmt"
	"strings"
)

// Repository identifies a remote repository. It is immutable once a task is created.
type Repository struct {
	Owner string `yaml:"owner" json:"owner"`
	Name  string `yaml:"name" json:"name"`
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repository) String() string { return r.FullName() }

// Validate rejects empty or path-like owner and name values.
func (r Repository) Validate() error {
	for field, v := range map[string]string{"owner": r.Owner, "name": r.Name} {
		switch {
		case v == "":
			return fmt.Errorf("repository %s is empty", field)
		case v == "." || v == ".." || strings.ContainsAny(v, `/\`):
			return fmt.Errorf("repository %s %q is not a single path segment", field, v)
		}
	}
	return nil
}

// TemplateName is the directory name of the repository's template under the
// template store: "<owner>+<name>".
func (r Repository) TemplateName() string {
	return r.Owner + "+" + r.Name
}
