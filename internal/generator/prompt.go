package generator

import (
	"fmt"
	"strings"

	"github.com/sakif/apfiles/internal/model"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are an expert educational content creator (The Builder). " +
	"Answer in Markdown."

// Title is the heading the generated document starts with.
func Title(p Params) string {
	if p.Type == model.TypeAnswerKey {
		return fmt.Sprintf("Answer Key: %s (Unit %s)", p.Subject, p.Unit)
	}
	return fmt.Sprintf("%s: Unit %s (%s)", p.Subject, p.Unit, p.MaterialCategory)
}

// BuildPrompt renders the user prompt for params.
func BuildPrompt(p Params) string {
	var b strings.Builder
	if p.Type == model.TypeAnswerKey {
		writeAnswerKeyPrompt(&b, p)
	} else {
		writeStudyGuidePrompt(&b, p)
	}
	return b.String()
}

func writeContext(b *strings.Builder, p Params) {
	if d := strings.TrimSpace(p.Description); d != "" {
		fmt.Fprintf(b, "\n**Important User Context/Instructions:** The user provided the following specific details: %q. "+
			"Please tailor the content to address this description specifically.\n", d)
	}
}

func writeAnswerKeyPrompt(b *strings.Builder, p Params) {
	fmt.Fprintf(b, "The user has requested an Answer Key for %q - Unit %s.\n", p.Subject, p.Unit)
	if p.AttachedFileName != "" {
		fmt.Fprintf(b, "The user also attached a file named %q (assume it contains specific problems).\n", p.AttachedFileName)
	}
	writeContext(b, p)
	fmt.Fprintf(b, "\nSince you cannot see the user's file directly, generate a **Template Answer Key** and a set of "+
		"**Sample Problems with Solutions** relevant to standard Unit %s curriculum for %s.\n\n", p.Unit, p.Subject)
	b.WriteString("Structure the output in Markdown as follows:\n")
	fmt.Fprintf(b, "# %s\n\n", Title(p))
	b.WriteString("## Overview\n(Brief generic description of topics covered in this unit)\n\n")
	b.WriteString("## Sample Problem Set & Solutions\n(Generate 3 complex problems typical for this unit and provide step-by-step solutions)\n\n")
	b.WriteString("## Common Pitfalls\n(List common mistakes students make in this unit)\n")
}

func writeStudyGuidePrompt(b *strings.Builder, p Params) {
	instruction, structure := studyGuideShape(p)
	fmt.Fprintf(b, "User Request: %s\nSubject: %q\nUnit: %q\n", instruction, p.Subject, p.Unit)
	writeContext(b, p)
	fmt.Fprintf(b, "\nPlease infer the standard curriculum topics typically associated with this unit number "+
		"for high school or introductory college level %s.\n\n", p.Subject)
	b.WriteString("Structure the output in Markdown as follows:\n")
	fmt.Fprintf(b, "# %s\n%s", Title(p), structure)
}

func studyGuideShape(p Params) (instruction, structure string) {
	switch p.MaterialCategory {
	case model.CategoryMockExam:
		return "Create a Mock Exam for the student to test their knowledge.",
			"## Section A: Multiple Choice (5 Questions)\n(Provide 5 questions with options)\n\n" +
				"## Section B: Free Response (2 Questions)\n(Provide 2 complex questions)\n\n" +
				"## Answer Key (at the end)\n(Provide answers for the above)\n"
	case model.CategoryAssignment:
		return "Create a Homework Assignment for the student.",
			fmt.Sprintf("## Assignment: %s Unit %s\n\n", p.Subject, p.Unit) +
				"**Instructions:** Solve the following problems. Show your work.\n\n" +
				"1. (Conceptual Question)\n2. (Calculation Question)\n3. (Application Question)\n" +
				"4. (Advanced Question)\n5. (Challenge Question)\n"
	case model.CategoryPractice:
		return "Create a set of Practice Problems with detailed solutions.",
			"## Practice Set\n(Provide 5 problems ranging from easy to hard)\n\n" +
				"## Step-by-Step Solutions\n(Provide detailed walkthroughs for each)\n"
	}
	return "Create a comprehensive study guide.",
		"## Key Concepts\n(List key concepts)\n\n" +
			"## Important Formulas\n(List formulas)\n\n" +
			"## Practice Problem\n(One example problem)\n"
}
