package publish

import (
	"strings"

	"storyqa/pkg/tracker"
)

// ResolveProject maps a user-supplied target onto a project reference.
// An empty target means the story's own project. The target is matched
// against project keys, then project names, then its cleaned key form.
// fallbackID is the story's project id when the target is the story's own
// project, for retrying a rejected key.
func ResolveProject(target string, story *tracker.Issue, projects []tracker.Project) (ref tracker.ProjectRef, fallbackID string) {
	target = strings.TrimSpace(target)
	own := story.Fields.Project
	if target == "" {
		target = own.Key
	}

	key := matchProject(target, projects)
	if key == "" {
		key = CleanProjectKey(target)
		if matched := matchProject(key, projects); matched != "" {
			key = matched
		}
	}

	if strings.EqualFold(key, own.Key) {
		return tracker.ProjectRef{Key: own.Key}, own.ID
	}
	return tracker.ProjectRef{Key: key}, ""
}

func matchProject(target string, projects []tracker.Project) string {
	for i := range projects {
		if strings.EqualFold(projects[i].Key, target) {
			return projects[i].Key
		}
	}
	for i := range projects {
		if projects[i].Name != "" && strings.EqualFold(projects[i].Name, target) {
			return projects[i].Key
		}
	}
	return ""
}

// CleanProjectKey reduces a display label such as "TCM-XRAY (TC)" to the
// leading key "TCM": text before the first space or parenthesis, then
// before the first hyphen, upper-cased.
func CleanProjectKey(label string) string {
	s := strings.TrimSpace(label)
	if i := strings.IndexAny(s, " ("); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}
