package connect

type ArtifactKind string

const (
	ArtifactFile    ArtifactKind = "file"
	ArtifactCommand ArtifactKind = "command"
	ArtifactURL     ArtifactKind = "url"
)

// Artifact is what a client needs to open a session. Exactly one of File,
// Command and URL is set, according to Kind.
type Artifact struct {
	Kind    ArtifactKind
	File    *RDPFile
	Command string
	URL     string
}

// RDPFile is a remote desktop connection file. Name is percent-encoded and has
// no extension.
type RDPFile struct {
	Name    string
	Content string
}
