package nlq

import (
	"fmt"
	"strings"
)

// defaultTimestamp substitutes for a period the question did not mention.
const defaultTimestamp = "2023-01-01T00:00:00"

// noDateFiltersMarker appears in the prompt when no date phrase resolved.
const noDateFiltersMarker = "No date filters requested."

// schemaDescription is the hard-coded graph schema embedded in every
// generation prompt. SHARED is User to Post: the sharer points at the
// original post.
const schemaDescription = `Nodes:

User: {id (string), name (string), username (string), email (string), followers (integer), account_created (date), verified (boolean), location (string)}

Post: {id (string), content (string), likes (integer), shares (integer), comments (integer), platform (string), timestamp (datetime), author_id (string), tags (list of strings)}

FactCheck: {id (string), status (string), comments (string)}

Relationships:

(u:User)-[:CREATED]->(p:Post)

(p:Post)-[:VERIFIED_BY]->(f:FactCheck)

(u:User)-[:SHARED]->(p:Post)`

// BuildPrompt assembles the Cypher-generation prompt: role statement,
// output constraints, safety rules, schema, resolved date filters, few-shot
// examples, and the question awaiting completion. Deterministic for a fixed
// question and clock reading.
func BuildPrompt(question string, filters DateFilters) string {
	dateClause := dateFilterClause(filters)
	if dateClause == "" {
		dateClause = noDateFiltersMarker
	}

	var b strings.Builder
	b.WriteString(`You are a Cypher query generation assistant.

Given a user's natural language question about social media viral posts and fact-check lineage, your task is to generate a valid Neo4j Cypher query only. Do NOT include explanations, comments, or any other text.

Important instructions:
- Only output the Cypher query.
- Use the graph schema below.
- Use explicit datetime literals in ISO 8601 format like: datetime('2023-08-10T00:00:00')
- For natural language dates like 'this week', 'this month', 'this year', filter posts by timestamps accordingly in the query.
- Use the following date filters where applicable in your query:
  `)
	b.WriteString(dateClause)
	b.WriteString(`
- Avoid any Cypher commands that modify or delete data such as DROP, DELETE, REMOVE.
- Prioritize read-only queries (using MATCH, RETURN, OPTIONAL MATCH, WHERE).
- Return relevant fields only, e.g. p.id, p.content, p.shares, p.timestamp, u.id.
- Limit results to a reasonable number (e.g. LIMIT 5 or 10) when applicable.

Graph database schema:

`)
	b.WriteString(schemaDescription)
	b.WriteString("\n\nExamples:\n\n")
	b.WriteString(fewShotExamples(filters))
	b.WriteString(`
Now, generate a Cypher query for the following user question.
Remember: Output only the Cypher query.

Q: `)
	b.WriteString(question)
	b.WriteString("\nA:")
	return b.String()
}

// dateFilterClause joins the active period conditions with OR, in the fixed
// week, month, year order. Empty when no filter resolved.
func dateFilterClause(filters DateFilters) string {
	var conds []string
	for _, period := range []string{PeriodWeek, PeriodMonth, PeriodYear} {
		if ts, ok := filters[period]; ok {
			conds = append(conds, fmt.Sprintf("p.timestamp >= datetime('%s')", ts))
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// fewShotExamples renders the question/query example pairs with resolved
// timestamps substituted, or the default when the period was not mentioned.
func fewShotExamples(filters DateFilters) string {
	week := filterOrDefault(filters, PeriodWeek)
	month := filterOrDefault(filters, PeriodMonth)
	year := filterOrDefault(filters, PeriodYear)

	return fmt.Sprintf(`Q: Show me the most viral posts on Twitter this week
A: MATCH (p:Post) WHERE p.shares > 100 AND p.platform = 'Twitter' AND p.timestamp >= datetime('%s') RETURN p.id, p.content, p.shares, p.timestamp ORDER BY p.shares DESC LIMIT 5

Q: Find posts verified as false news this month
A: MATCH (p:Post)-[:VERIFIED_BY]->(f:FactCheck {status: 'False'}) WHERE p.timestamp >= datetime('%s') RETURN p.id, p.content, f.comments LIMIT 5

Q: Who shared the COVID variant news?
A: MATCH (u:User)-[:SHARED]->(p:Post) WHERE toLower(p.content) CONTAINS 'covid variant' RETURN u.id, u.name, p.content, p.timestamp LIMIT 5

Q: List posts created by user john_doe this year
A: MATCH (u:User {username: 'john_doe'})-[:CREATED]->(p:Post) WHERE p.timestamp >= datetime('%s') RETURN p.id, p.content, p.timestamp LIMIT 5
`, week, month, year)
}

func filterOrDefault(filters DateFilters, period string) string {
	if ts, ok := filters[period]; ok {
		return ts
	}
	return defaultTimestamp
}
