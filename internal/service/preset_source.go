package service

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pretty1020/lept-reviewer/internal/model"
)

// presetSource serves curated questions to FREE-tier users without
// spending generator tokens. Questions are keyed by exam component and
// matched to the requested difficulty where possible, falling back to
// the rest of the component's bank when the pool runs short.
type presetSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	bank map[string][]presetQuestion
}

type presetQuestion struct {
	difficulty string
	question   model.Question
}

// NewPresetSource creates a QuestionGenerator serving the built-in bank.
func NewPresetSource(seed int64) QuestionGenerator {
	return &presetSource{
		rng:  rand.New(rand.NewSource(seed)),
		bank: presetBank,
	}
}

func (p *presetSource) Generate(_ context.Context, req GenerateRequest) ([]model.Question, error) {
	pool, ok := p.bank[req.ExamComponent]
	if !ok {
		pool = p.bank["general_education"]
	}

	matched := make([]model.Question, 0, len(pool))
	rest := make([]model.Question, 0, len(pool))
	for _, q := range pool {
		if q.difficulty == req.Difficulty {
			matched = append(matched, q.question)
		} else {
			rest = append(rest, q.question)
		}
	}

	p.mu.Lock()
	p.rng.Shuffle(len(matched), func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })
	p.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	p.mu.Unlock()

	combined := append(matched, rest...)
	n := req.NumQuestions
	if n > len(combined) {
		n = len(combined)
	}
	return combined[:n], nil
}

var presetBank = map[string][]presetQuestion{
	"general_education": {
		{
			difficulty: "Easy",
			question: model.Question{
				Question: "Which Philippine law is known as the Enhanced Basic Education Act of 2013?",
				Options: map[string]string{
					"A": "RA 10533",
					"B": "RA 9155",
					"C": "RA 7836",
					"D": "RA 4670",
				},
				CorrectAnswer: "A",
				Explanation:   "RA 10533, the Enhanced Basic Education Act of 2013, institutionalized the K to 12 program.",
			},
		},
		{
			difficulty: "Easy",
			question: model.Question{
				Question: "Who is known as the national hero of the Philippines?",
				Options: map[string]string{
					"A": "Andres Bonifacio",
					"B": "Jose Rizal",
					"C": "Emilio Aguinaldo",
					"D": "Apolinario Mabini",
				},
				CorrectAnswer: "B",
				Explanation:   "Jose Rizal is widely recognized as the national hero for his writings that inspired the reform movement.",
			},
		},
		{
			difficulty: "Medium",
			question: model.Question{
				Question: "Which branch of the Philippine government has the power to declare the existence of a state of war?",
				Options: map[string]string{
					"A": "Executive",
					"B": "Judiciary",
					"C": "Congress",
					"D": "Commission on Elections",
				},
				CorrectAnswer: "C",
				Explanation:   "Under the 1987 Constitution, Congress, by two-thirds vote of both Houses in joint session, has the sole power to declare the existence of a state of war.",
			},
		},
		{
			difficulty: "Medium",
			question: model.Question{
				Question: "What figure of speech is used in the sentence 'The classroom was a zoo during recess'?",
				Options: map[string]string{
					"A": "Simile",
					"B": "Metaphor",
					"C": "Hyperbole",
					"D": "Personification",
				},
				CorrectAnswer: "B",
				Explanation:   "The sentence directly equates the classroom with a zoo without using 'like' or 'as', which makes it a metaphor.",
			},
		},
		{
			difficulty: "Hard",
			question: model.Question{
				Question: "A store sells an item at a 20% discount and still earns a 20% profit on cost. If the discounted price is PHP 360, what was the cost?",
				Options: map[string]string{
					"A": "PHP 240",
					"B": "PHP 288",
					"C": "PHP 300",
					"D": "PHP 320",
				},
				CorrectAnswer: "C",
				Explanation:   "The selling price of 360 equals 120% of cost, so the cost is 360 / 1.2 = 300.",
			},
		},
	},
	"professional_education": {
		{
			difficulty: "Easy",
			question: model.Question{
				Question: "Which theorist is associated with the zone of proximal development?",
				Options: map[string]string{
					"A": "Jean Piaget",
					"B": "Lev Vygotsky",
					"C": "B.F. Skinner",
					"D": "Jerome Bruner",
				},
				CorrectAnswer: "B",
				Explanation:   "Vygotsky introduced the zone of proximal development to describe tasks a learner can do with guidance.",
			},
		},
		{
			difficulty: "Easy",
			question: model.Question{
				Question: "In Bloom's revised taxonomy, which is the highest cognitive level?",
				Options: map[string]string{
					"A": "Evaluating",
					"B": "Analyzing",
					"C": "Creating",
					"D": "Applying",
				},
				CorrectAnswer: "C",
				Explanation:   "The revised taxonomy places Creating at the top, above Evaluating.",
			},
		},
		{
			difficulty: "Medium",
			question: model.Question{
				Question: "A teacher gives a quiz at the end of a unit to assign grades. This assessment is best described as:",
				Options: map[string]string{
					"A": "Formative",
					"B": "Diagnostic",
					"C": "Summative",
					"D": "Placement",
				},
				CorrectAnswer: "C",
				Explanation:   "Assessment given at the end of instruction to judge achievement for grading purposes is summative.",
			},
		},
		{
			difficulty: "Medium",
			question: model.Question{
				Question: "Under the Code of Ethics for Professional Teachers, a teacher who tutors their own students for a fee without permission violates provisions on:",
				Options: map[string]string{
					"A": "The teacher and the state",
					"B": "The teacher and business",
					"C": "The teacher and the community",
					"D": "The teacher and higher authorities",
				},
				CorrectAnswer: "B",
				Explanation:   "The Code's article on the teacher and business prohibits tutoring one's own students for pay without official permission.",
			},
		},
		{
			difficulty: "Hard",
			question: model.Question{
				Question: "A teacher notices that item 7 on a test was answered correctly by most low scorers but missed by most high scorers. The item most likely has:",
				Options: map[string]string{
					"A": "High difficulty",
					"B": "Negative discrimination",
					"C": "High reliability",
					"D": "Positive skew",
				},
				CorrectAnswer: "B",
				Explanation:   "When low scorers outperform high scorers on an item, the discrimination index is negative and the item should be reviewed.",
			},
		},
	},
	"specialization": {
		{
			difficulty: "Easy",
			question: model.Question{
				Question: "Which instructional approach organizes content around the learner's major field while connecting related disciplines?",
				Options: map[string]string{
					"A": "Correlated approach",
					"B": "Separate-subject approach",
					"C": "Broad-fields approach",
					"D": "Core curriculum approach",
				},
				CorrectAnswer: "C",
				Explanation:   "The broad-fields approach fuses related specializations into a unified field of study.",
			},
		},
		{
			difficulty: "Medium",
			question: model.Question{
				Question: "In subject-area teaching, which assessment practice best supports content mastery in a specialization?",
				Options: map[string]string{
					"A": "Norm-referenced ranking only",
					"B": "Frequent low-stakes retrieval practice",
					"C": "A single high-stakes final exam",
					"D": "Unrecorded oral recitation",
				},
				CorrectAnswer: "B",
				Explanation:   "Spaced, low-stakes retrieval practice is consistently shown to strengthen long-term retention of subject content.",
			},
		},
		{
			difficulty: "Hard",
			question: model.Question{
				Question: "A specialization teacher plans a lesson requiring students to critique competing models within the discipline and defend one. This primarily targets which cognitive level?",
				Options: map[string]string{
					"A": "Understanding",
					"B": "Applying",
					"C": "Analyzing",
					"D": "Evaluating",
				},
				CorrectAnswer: "D",
				Explanation:   "Critiquing models using criteria and defending a judgment is the Evaluating level of the revised taxonomy.",
			},
		},
	},
}
