package normalize

// Deformation-analysis fields have accumulated multiple upstream key names
// as the station firmware evolved. Each canonical field resolves its
// aliases in the listed order and takes the first value present; the order
// is significant and must not be rearranged, since producers occasionally
// populate more than one alias.
var (
	distance3DAliases = []string{"deformation_distance_3d", "deform_distance_3d", "distance_3d"}
	horizontalAliases = []string{"deformation_horizontal", "horizontal_displacement", "displacement_h"}
	verticalAliases   = []string{"deformation_vertical", "vertical_displacement", "displacement_v"}
	velocityAliases   = []string{"deformation_velocity", "deform_velocity", "displacement_velocity"}
	deformRiskAliases = []string{"deformation_risk_level", "deform_risk_level", "deformation_risk"}
	deformTypeAliases = []string{"deformation_type", "deform_type"}
	confidenceAliases = []string{"deformation_confidence", "deform_confidence", "analysis_confidence"}
	baselineAliases   = []string{"baseline_established", "baseline_ok", "has_baseline"}
)

// firstPresent returns the value for the first alias present in props.
func firstPresent(props map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := props[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
