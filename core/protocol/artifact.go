package protocol

// Artifact is a named data value exchanged with a declarative backend.
// Later writes to the same Identifier supersede earlier ones.
type Artifact struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Type       string `json:"artifact_type"`
	Data       any    `json:"data"`
}

// NewTableArtifact creates an artifact holding tabular rows.
func NewTableArtifact(identifier, title string, rows []map[string]any) Artifact {
	data := make([]any, len(rows))
	for i, r := range rows {
		data[i] = r
	}
	return Artifact{Identifier: identifier, Title: title, Type: "table", Data: data}
}
