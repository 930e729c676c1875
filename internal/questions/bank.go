package questions

// Program categories offered at profile setup.
const (
	ProgramMedical    = "Medical School"
	ProgramDental     = "Dental School"
	ProgramPharmacy   = "Pharmacy School"
	ProgramPA         = "Physician Assistant (PA) Program"
	ProgramNursing    = "Nursing School"
	ProgramVeterinary = "Veterinary School"
	ProgramOptometry  = "Optometry School"
	ProgramLaw        = "Law School"
	ProgramMBA        = "Business School (MBA)"
	ProgramPT         = "Physical Therapy (PT)"
	ProgramOT         = "Occupational Therapy (OT)"
)

var programOptions = []string{
	ProgramMedical,
	ProgramDental,
	ProgramPharmacy,
	ProgramPA,
	ProgramNursing,
	ProgramVeterinary,
	ProgramOptometry,
	ProgramLaw,
	ProgramMBA,
	ProgramPT,
	ProgramOT,
}

// Only the health-profession banks below are curated so far; every other
// program falls back to the medical set.
var banks = map[string][]Question{
	ProgramMedical: {
		{ID: 1, Type: "motivation", Text: "Why do you want to become a physician?"},
		{ID: 2, Type: "motivation", Text: "What experiences have confirmed your interest in medicine?"},
		{ID: 3, Type: "ethics", Text: "A patient refuses a life-saving blood transfusion on religious grounds. How would you respond?"},
		{ID: 4, Type: "ethics", Text: "Should physicians be allowed to strike? Defend your position."},
		{ID: 5, Type: "teamwork", Text: "Tell me about a time you worked with a difficult team member. How did you handle it?"},
		{ID: 6, Type: "resilience", Text: "Describe a significant failure and what you learned from it."},
		{ID: 7, Type: "healthcare", Text: "What do you consider the biggest problem facing healthcare today?"},
		{ID: 8, Type: "personal", Text: "What would your closest friend say is your greatest weakness?"},
		{ID: 9, Type: "scenario", Text: "You notice a classmate cheating on an exam. What do you do?"},
		{ID: 10, Type: "communication", Text: "How would you deliver bad news to a patient?"},
	},
	ProgramDental: {
		{ID: 1, Type: "motivation", Text: "Why dentistry rather than another health profession?"},
		{ID: 2, Type: "manual", Text: "What experiences demonstrate your manual dexterity?"},
		{ID: 3, Type: "ethics", Text: "A patient asks for a treatment you believe is unnecessary. What do you do?"},
		{ID: 4, Type: "healthcare", Text: "How would you improve access to dental care in underserved communities?"},
		{ID: 5, Type: "personal", Text: "Describe a time you had to explain something technical to someone without a technical background."},
		{ID: 6, Type: "resilience", Text: "Tell me about a setback in your academic career and how you recovered."},
	},
	ProgramPharmacy: {
		{ID: 1, Type: "motivation", Text: "Why do you want to be a pharmacist?"},
		{ID: 2, Type: "scenario", Text: "A customer becomes angry about a prescription delay. How do you respond?"},
		{ID: 3, Type: "ethics", Text: "You suspect a prescriber is overprescribing opioids. What is your responsibility?"},
		{ID: 4, Type: "healthcare", Text: "What role should pharmacists play in patient counseling?"},
		{ID: 5, Type: "teamwork", Text: "Describe a time you caught an error that others had missed."},
		{ID: 6, Type: "personal", Text: "How do you stay organized when handling competing priorities?"},
	},
}
