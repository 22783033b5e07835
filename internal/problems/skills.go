package problems

import "strings"

// SkillPartition binds a skill slug to the partition holding its questions.
type SkillPartition struct {
	Skill     string
	Category  string
	Partition string
}

// DefaultSkills is the static skill -> partition table, grouped by the
// sub-domains of the Math and Reading and Writing sections. Declaration
// order is the fan-out order.
var DefaultSkills = []SkillPartition{
	{Skill: "linear-functions", Category: "algebra", Partition: "Algebra - Linear Functions"},
	{Skill: "linear-equations-1var", Category: "algebra", Partition: "Algebra - Linear Equations in One Variable"},
	{Skill: "linear-equations-2var", Category: "algebra", Partition: "Algebra - Linear Equations in Two Variables"},
	{Skill: "systems-linear-equations", Category: "algebra", Partition: "Algebra - Systems of Two Linear Equations in Two Variables"},
	{Skill: "linear-inequalities", Category: "algebra", Partition: "Algebra - Linear Inequalities in One or Two Variables"},

	{Skill: "nonlinear-functions", Category: "advanced-math", Partition: "Advanced Math - Nonlinear Functions"},
	{Skill: "equivalent-expressions", Category: "advanced-math", Partition: "Advanced Math - Equivalent Expressions"},
	{Skill: "nonlinear-equations", Category: "advanced-math", Partition: "Advanced Math - Nonlinear Equations and Systems"},

	{Skill: "ratios-rates", Category: "psda", Partition: "Problem-Solving and Data Analysis - Ratios, Rates, Proportional Relationships, and Units"},
	{Skill: "percentages", Category: "psda", Partition: "Problem-Solving and Data Analysis - Percentages"},
	{Skill: "probability", Category: "psda", Partition: "Problem-Solving and Data Analysis - Probability and Conditional Probability"},

	{Skill: "area-volume", Category: "geometry-trigonometry", Partition: "Geometry and Trigonometry - Area and Volume"},
	{Skill: "right-triangles", Category: "geometry-trigonometry", Partition: "Geometry and Trigonometry - Right Triangles and Trigonometry"},
	{Skill: "circles", Category: "geometry-trigonometry", Partition: "Geometry and Trigonometry - Circles"},

	{Skill: "central-ideas", Category: "information-ideas", Partition: "Information and Ideas - Central Ideas and Details"},
	{Skill: "command-of-evidence", Category: "information-ideas", Partition: "Information and Ideas - Command of Evidence"},
	{Skill: "inferences", Category: "information-ideas", Partition: "Information and Ideas - Inferences"},

	{Skill: "words-in-context", Category: "craft-structure", Partition: "Craft and Structure - Words in Context"},
	{Skill: "text-structure", Category: "craft-structure", Partition: "Craft and Structure - Text Structure and Purpose"},
	{Skill: "cross-text", Category: "craft-structure", Partition: "Craft and Structure - Cross-Text Connections"},

	{Skill: "rhetorical-synthesis", Category: "expression-ideas", Partition: "Expression of Ideas - Rhetorical Synthesis"},
	{Skill: "transitions", Category: "expression-ideas", Partition: "Expression of Ideas - Transitions"},

	{Skill: "boundaries", Category: "standard-english", Partition: "Standard English Conventions - Boundaries"},
	{Skill: "form-structure-sense", Category: "standard-english", Partition: "Standard English Conventions - Form, Structure, and Sense"},
}

// Resolver maps a requested skill to the partitions that must be read.
type Resolver struct {
	shared  string
	bySkill map[string]string
	all     []string
}

// NewResolver builds a resolver over table. A non-blank shared partition
// overrides every lookup.
func NewResolver(shared string, table []SkillPartition) *Resolver {
	r := &Resolver{
		shared:  strings.TrimSpace(shared),
		bySkill: make(map[string]string, len(table)),
		all:     make([]string, 0, len(table)),
	}
	seen := make(map[string]struct{}, len(table))
	for _, sp := range table {
		key := normalizeKey(sp.Skill)
		if _, dup := r.bySkill[key]; !dup && key != "" {
			r.bySkill[key] = sp.Partition
		}
		if _, ok := seen[sp.Partition]; !ok {
			seen[sp.Partition] = struct{}{}
			r.all = append(r.all, sp.Partition)
		}
	}
	return r
}

// Resolve returns the partitions to read for skill. Empty or unknown skills
// fan out to every partition in the table.
func (r *Resolver) Resolve(skill string) []string {
	if r.shared != "" {
		return []string{r.shared}
	}
	if p, ok := r.bySkill[normalizeKey(skill)]; ok {
		return []string{p}
	}
	return r.Partitions()
}

// Lookup returns the partition bound to skill, ignoring the shared override.
func (r *Resolver) Lookup(skill string) (string, bool) {
	p, ok := r.bySkill[normalizeKey(skill)]
	return p, ok
}

// Partitions returns every distinct partition in declaration order.
func (r *Resolver) Partitions() []string {
	out := make([]string, len(r.all))
	copy(out, r.all)
	return out
}

// Shared returns the configured override partition, if any.
func (r *Resolver) Shared() string {
	return r.shared
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
