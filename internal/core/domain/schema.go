package domain

import "strings"

// FieldKind is the shape of a schema field's value.
type FieldKind string

// Field kinds understood by the extractor.
const (
	FieldString   FieldKind = "string"
	FieldList     FieldKind = "string_list"
	FieldMap      FieldKind = "string_map"
	FieldSnippets FieldKind = "code_snippets"
)

// SchemaField names one attribute the extractor should return.
type SchemaField struct {
	Name        string
	Kind        FieldKind
	Description string
}

// ContentSchema lists the attributes an extractor is asked to fill.
type ContentSchema struct {
	Fields []SchemaField
}

// Extraction field names.
const (
	FieldTitle          = "title"
	FieldType           = "type"
	FieldAuthors        = "authors"
	FieldPublishedDate  = "published_date"
	FieldDescription    = "description"
	FieldCapabilities   = "capabilities"
	FieldTechnicalSpecs = "technical_specs"
	FieldCodeSnippets   = "code_snippets"
	FieldImages         = "images"
	FieldRepositoryLink = "repository_link"
	FieldPaperLink      = "paper_link"
)

// DefaultContentSchema returns the schema used for discovery runs.
func DefaultContentSchema() ContentSchema {
	return ContentSchema{Fields: []SchemaField{
		{Name: FieldTitle, Kind: FieldString, Description: "name of the tool, model, paper or article"},
		{Name: FieldType, Kind: FieldString, Description: "one of: tool, model, paper, article"},
		{Name: FieldAuthors, Kind: FieldList, Description: "people or organisations credited"},
		{Name: FieldPublishedDate, Kind: FieldString, Description: "publication date as YYYY-MM-DD, if stated"},
		{Name: FieldDescription, Kind: FieldString, Description: "two or three sentence summary"},
		{Name: FieldCapabilities, Kind: FieldList, Description: "short phrases naming what it can do"},
		{Name: FieldTechnicalSpecs, Kind: FieldMap, Description: "parameters, context length, license, hardware and similar facts"},
		{Name: FieldCodeSnippets, Kind: FieldSnippets, Description: "usage examples as {language, code}"},
		{Name: FieldImages, Kind: FieldList, Description: "absolute image URLs"},
		{Name: FieldRepositoryLink, Kind: FieldString, Description: "source code repository URL"},
		{Name: FieldPaperLink, Kind: FieldString, Description: "paper URL (arXiv or publisher)"},
	}}
}

// Has returns true if the schema includes the named field.
func (s ContentSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Names returns the field names in schema order.
func (s ContentSchema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// PartialContent is the extractor's output. Empty values mean "not found".
type PartialContent struct {
	Title          string
	Type           ItemType
	Authors        []string
	PublishedDate  string
	Description    string
	Capabilities   []string
	TechnicalSpecs map[string]string
	CodeSnippets   []CodeSnippet
	Images         []string
	RepositoryLink string
	PaperLink      string
}

// IsEmpty returns true if nothing was extracted.
func (p *PartialContent) IsEmpty() bool {
	if p == nil {
		return true
	}
	return strings.TrimSpace(p.Title) == "" &&
		p.Type == "" &&
		len(p.Authors) == 0 &&
		p.PublishedDate == "" &&
		strings.TrimSpace(p.Description) == "" &&
		len(p.Capabilities) == 0 &&
		len(p.TechnicalSpecs) == 0 &&
		len(p.CodeSnippets) == 0 &&
		len(p.Images) == 0 &&
		p.RepositoryLink == "" &&
		p.PaperLink == ""
}
