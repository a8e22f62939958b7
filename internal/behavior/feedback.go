package behavior

import "math"

// Score bands.
const (
	bandWeak      = 50.0
	bandFair      = 70.0
	bandBonus     = 80.0
	bandExcellent = 85.0
	bonusFactor   = 1.1
)

// Improvement notes.
const (
	NoteEyeContactWeak = "Try to maintain more consistent eye contact with the camera"
	NoteEyeContactFair = "Good eye contact, but try to be more consistent throughout the interview"
	NotePostureWeak    = "Sit up straight and position yourself in the center of the frame"
	NotePostureFair    = "Good posture overall, but try to maintain a more centered position"
)

// Overall feedback by confidence band.
const (
	OverallExcellent  = "Excellent interview presence! You demonstrate strong confidence and professionalism."
	OverallGood       = "Good interview presence with room for minor improvements."
	OverallDeveloping = "Your interview presence is developing. Focus on the suggested improvements."
	OverallWeak       = "There's significant room for improvement in your interview presence. Practice the suggested techniques."
)

// PositiveReinforcement is the only entry when no improvement was needed.
const PositiveReinforcement = "Great job! Continue practicing to maintain these good habits."

// PracticeTips are appended whenever at least one improvement was needed.
var PracticeTips = []string{
	"Practice in front of a mirror to build confidence",
	"Record yourself answering common interview questions",
	"Maintain a slight smile and positive facial expression",
}

// Confidence weights eye contact at 60% and posture at 40%. When both
// exceed 80 a 10% bonus is applied, capped at 100.
func Confidence(eyeContact, posture float64) float64 {
	c := 0.6*eyeContact + 0.4*posture
	if eyeContact > bandBonus && posture > bandBonus {
		c = math.Min(100, c*bonusFactor)
	}
	return clamp(c)
}

// OverallBand returns the overall feedback text for a confidence score.
// Lower bounds are inclusive.
func OverallBand(confidence float64) string {
	switch {
	case confidence >= bandExcellent:
		return OverallExcellent
	case confidence >= bandFair:
		return OverallGood
	case confidence >= bandWeak:
		return OverallDeveloping
	default:
		return OverallWeak
	}
}

// Feedback maps scores to the overall feedback text and the improvement
// list.
func Feedback(eyeContact, posture, confidence float64) (string, []string) {
	var improvements []string

	switch {
	case eyeContact < bandWeak:
		improvements = append(improvements, NoteEyeContactWeak)
	case eyeContact < bandFair:
		improvements = append(improvements, NoteEyeContactFair)
	}

	switch {
	case posture < bandWeak:
		improvements = append(improvements, NotePostureWeak)
	case posture < bandFair:
		improvements = append(improvements, NotePostureFair)
	}

	if len(improvements) == 0 {
		improvements = append(improvements, PositiveReinforcement)
	} else {
		improvements = append(improvements, PracticeTips...)
	}
	return OverallBand(confidence), improvements
}
