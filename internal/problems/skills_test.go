package problems_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/learnpalm/practice/internal/problems"
)

func allPartitions() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, sp := range problems.DefaultSkills {
		if _, ok := seen[sp.Partition]; ok {
			continue
		}
		seen[sp.Partition] = struct{}{}
		out = append(out, sp.Partition)
	}
	return out
}

func TestResolveFansOutForEmptyOrUnknownSkill(t *testing.T) {
	r := problems.NewResolver("", problems.DefaultSkills)
	want := allPartitions()

	for _, skill := range []string{"", "   ", "unknown-skill", "linear"} {
		t.Run(skill, func(t *testing.T) {
			if diff := cmp.Diff(want, r.Resolve(skill)); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", skill, diff)
			}
		})
	}
}

func TestResolveKnownSkill(t *testing.T) {
	r := problems.NewResolver("", problems.DefaultSkills)

	require.Equal(t, []string{"Algebra - Linear Functions"}, r.Resolve("linear-functions"))
	require.Equal(t, []string{"Algebra - Linear Equations in One Variable"}, r.Resolve("  Linear-Equations-1VAR "))
	require.Equal(t, []string{"Craft and Structure - Words in Context"}, r.Resolve("words-in-context"))
}

func TestResolveSharedPartitionOverrides(t *testing.T) {
	r := problems.NewResolver("  Shared Questions ", problems.DefaultSkills)

	for _, skill := range []string{"", "linear-functions", "nope"} {
		require.Equal(t, []string{"Shared Questions"}, r.Resolve(skill))
	}
	require.Equal(t, "Shared Questions", r.Shared())

	p, ok := r.Lookup("circles")
	require.True(t, ok)
	require.Equal(t, "Geometry and Trigonometry - Circles", p)
}

func TestResolveBlankSharedPartitionIsIgnored(t *testing.T) {
	r := problems.NewResolver("   ", problems.DefaultSkills)
	require.Equal(t, []string{"Algebra - Linear Functions"}, r.Resolve("linear-functions"))
}

func TestDefaultSkillsCoverCategories(t *testing.T) {
	categories := map[string]struct{}{}
	for _, sp := range problems.DefaultSkills {
		require.NotEmpty(t, sp.Skill)
		require.NotEmpty(t, sp.Partition)
		categories[sp.Category] = struct{}{}
	}
	require.GreaterOrEqual(t, len(categories), 6)
}

func TestPartitionsReturnsCopy(t *testing.T) {
	r := problems.NewResolver("", problems.DefaultSkills)
	got := r.Partitions()
	got[0] = "mutated"
	require.NotEqual(t, "mutated", r.Partitions()[0])
}
