package slimexpress_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slimexpress "github.com/MrGharbiii/slim-express"
)

func TestNormalizeGoal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"weight-loss", slimexpress.GoalWeightLoss},
		{"weightLoss", slimexpress.GoalWeightLoss},
		{"weight_loss", slimexpress.GoalWeightLoss},
		{"WEIGHT_LOSS", slimexpress.GoalWeightLoss},
		{"lose_weight", slimexpress.GoalWeightLoss},
		{"Muscle Gain", slimexpress.GoalMuscleGain},
		{"buildMuscle", slimexpress.GoalMuscleGain},
		{"maintain", slimexpress.GoalMaintainWeight},
		{"improveEndurance", slimexpress.GoalImproveEndurance},
		{"flexibility", slimexpress.GoalImproveFlexibility},
		{"general_fitness", slimexpress.GoalGeneralFitness},
		{"  general-fitness  ", slimexpress.GoalGeneralFitness},
		{"jumpHigher", "jump-higher"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, slimexpress.NormalizeGoal(tt.in))
		})
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	richErr := richError(t, err)
	require.Equal(t, slimexpress.TextCodeValidation, richErr.TextCode)
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}

func TestDecodeSectionPatch_BasicInfo(t *testing.T) {
	patch, err := slimexpress.DecodeSectionPatch(slimexpress.SectionBasicInfo, []byte(`{
		"name": "Ada",
		"dateOfBirth": "1990-05-15",
		"height": 170,
		"weight": 62.5,
		"phoneNumber": "+1 650-253-0000",
		"location": null
	}`))
	require.NoError(t, err)

	want := slimexpress.BasicInfo{
		Name:        strPtr("Ada"),
		DateOfBirth: strPtr("1990-05-15"),
		Height:      floatPtr(170),
		Weight:      floatPtr(62.5),
		PhoneNumber: strPtr("+16502530000"),
	}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Fatalf("patch mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, slimexpress.SectionBasicInfo, patch.Section())
	assert.False(t, patch.IsEmpty())
}

func TestDecodeSectionPatch_GoalsNormalised(t *testing.T) {
	patch, err := slimexpress.DecodeSectionPatch(slimexpress.SectionGoals, []byte(`{
		"primaryGoal": "muscleGain",
		"secondaryGoals": ["improve_endurance", "flexibility"],
		"targetWeight": 80
	}`))
	require.NoError(t, err)

	goals, ok := patch.(slimexpress.Goals)
	require.True(t, ok)
	assert.Equal(t, slimexpress.GoalMuscleGain, *goals.PrimaryGoal)
	assert.Equal(t, []string{slimexpress.GoalImproveEndurance, slimexpress.GoalImproveFlexibility}, goals.SecondaryGoals)
}

func TestDecodeSectionPatch_Empty(t *testing.T) {
	for _, body := range []string{"", "{}", `{"wakeUpTime": null}`} {
		patch, err := slimexpress.DecodeSectionPatch(slimexpress.SectionLifestyle, []byte(body))
		require.NoError(t, err, body)
		assert.True(t, patch.IsEmpty(), body)
	}
}

func TestDecodeSectionPatch_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		section slimexpress.Section
		body    string
		field   string
	}{
		{"phone", slimexpress.SectionBasicInfo, `{"phoneNumber":"12345"}`, "phoneNumber"},
		{"date format", slimexpress.SectionBasicInfo, `{"dateOfBirth":"15/05/1990"}`, "dateOfBirth"},
		{"too young", slimexpress.SectionBasicInfo, `{"dateOfBirth":"2024-01-01"}`, "dateOfBirth"},
		{"height range", slimexpress.SectionBasicInfo, `{"height":10}`, "height"},
		{"weight range", slimexpress.SectionBasicInfo, `{"weight":900}`, "weight"},
		{"empty name", slimexpress.SectionBasicInfo, `{"name":""}`, "name"},
		{"clock time", slimexpress.SectionLifestyle, `{"wakeUpTime":"7am"}`, "wakeUpTime"},
		{"frequency", slimexpress.SectionLifestyle, `{"exerciseFrequency":"sometimes"}`, "exerciseFrequency"},
		{"stress level", slimexpress.SectionLifestyle, `{"stressLevel":11}`, "stressLevel"},
		{"gender", slimexpress.SectionMedicalHistory, `{"gender":"robot"}`, "gender"},
		{"lab results", slimexpress.SectionMedicalHistory, `{"labResults":{"bloodPressureSystolic":10}}`, "labResults.bloodPressureSystolic"},
		{"goal", slimexpress.SectionGoals, `{"primaryGoal":"fly"}`, "primaryGoal"},
		{"secondary goal", slimexpress.SectionGoals, `{"secondaryGoals":["fly"]}`, "secondaryGoals"},
		{"units", slimexpress.SectionPreferences, `{"units":"cubits"}`, "units"},
		{"duration", slimexpress.SectionPreferences, `{"workoutDurationMinutes":1}`, "workoutDurationMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := slimexpress.DecodeSectionPatch(tt.section, []byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}

func TestDecodeSectionPatch_MalformedJSON(t *testing.T) {
	_, err := slimexpress.DecodeSectionPatch(slimexpress.SectionGoals, []byte(`{"primaryGoal":`))
	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeValidation))

	_, err = slimexpress.DecodeSectionPatch(slimexpress.SectionGoals, []byte(`{"targetWeight":"heavy"}`))
	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeValidation))
}

func TestDecodeSectionPatch_UnknownSection(t *testing.T) {
	_, err := slimexpress.DecodeSectionPatch(slimexpress.Section("nutrition"), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeValidation))
}
