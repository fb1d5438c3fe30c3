package build

import "strings"

var separatorReplacer = strings.NewReplacer("/", "_", `\`, "_")

// Identity derives the task identity "<owner>_<name>@<ref>". Path separators
// are replaced with "_" so the result is always a single path segment and is
// safe to use as a directory name.
func Identity(repo Repository, ref string) string {
	return separatorReplacer.Replace(repo.Owner + "_" + repo.Name + "@" + ref)
}
