package svn

import "encoding/json"

// svnPayload is the JSON body posted by the post-commit hook script.
// Revision may arrive as a number or a string depending on the hook version.
type svnPayload struct {
	RepositoryURL  string      `json:"repository_url"`
	ProjectName    string      `json:"project_name"`
	RepositoryName string      `json:"repository_name"`
	Revision       json.Number `json:"revision"`
	Author         string      `json:"author"`
	Message        string      `json:"message"`
	CommitMessage  string      `json:"commit_message"`
	Timestamp      string      `json:"timestamp"`
	Diff           string      `json:"diff"`
	SVNUsername    string      `json:"svn_username"`
	SVNPassword    string      `json:"svn_password"`
}

// svnLog mirrors the XML output of `svn log --xml -r N`.
type svnLog struct {
	Entries []svnLogEntry `xml:"logentry"`
}

type svnLogEntry struct {
	Revision string `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Message  string `xml:"msg"`
}
