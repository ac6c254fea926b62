package tracker

import (
	"encoding/json"

	"storyqa/pkg/adf"
)

// Issue is a fetched Jira issue. Description and acceptance criteria are
// kept raw because Jira returns either an ADF document or a plain string.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the fields storyqa requests.
type IssueFields struct {
	Summary            string          `json:"summary"`
	Description        json.RawMessage `json:"description,omitempty"`
	AcceptanceCriteria json.RawMessage `json:"-"`
	IssueType          IssueType       `json:"issuetype"`
	Project            Project         `json:"project"`
	Status             *Status         `json:"status,omitempty"`
}

// IssueType names an issue type.
type IssueType struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Project is a Jira project as returned in issues and project listings.
type Project struct {
	ID             string `json:"id,omitempty"`
	Key            string `json:"key"`
	Name           string `json:"name,omitempty"`
	ProjectTypeKey string `json:"projectTypeKey,omitempty"`
}

// Status is an issue workflow status.
type Status struct {
	Name string `json:"name"`
}

// DescriptionText flattens the description to plain text.
func (i *Issue) DescriptionText() string {
	return adf.ExtractRaw(i.Fields.Description)
}

// AcceptanceCriteriaText flattens the acceptance criteria field to plain text.
func (i *Issue) AcceptanceCriteriaText() string {
	return adf.ExtractRaw(i.Fields.AcceptanceCriteria)
}

// ProjectRef identifies a project by key or id. Key wins when both are set.
type ProjectRef struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// NewIssue is the input to CreateIssue.
type NewIssue struct {
	Project   ProjectRef
	Summary   string
	Body      *adf.Node
	IssueType string
}

// CreatedIssue is Jira's reply to an issue creation.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type createIssueRequest struct {
	Fields createIssueFields `json:"fields"`
}

type createIssueFields struct {
	Project     ProjectRef `json:"project"`
	Summary     string     `json:"summary"`
	Description *adf.Node  `json:"description"`
	IssueType   IssueType  `json:"issuetype"`
}

type issueKeyRef struct {
	Key string `json:"key"`
}

type linkRequest struct {
	Type         IssueType   `json:"type"`
	InwardIssue  issueKeyRef `json:"inwardIssue"`
	OutwardIssue issueKeyRef `json:"outwardIssue"`
}

type updateRequest struct {
	Fields map[string]any `json:"fields"`
}

type searchResponse struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast"`
}
