package analytics

// stopWords are common English function words that never count as keywords.
// Tokens shorter than three runes are filtered before this lookup, so short
// entries are kept only for completeness.
var stopWords = newWordSet(
	"a", "an", "the", "and", "or", "but", "nor", "yet", "so", "if", "then", "than",
	"i", "me", "my", "mine", "myself", "you", "your", "yours", "yourself", "yourselves",
	"he", "him", "his", "himself", "she", "her", "hers", "herself", "it", "its", "itself",
	"we", "us", "our", "ours", "ourselves", "they", "them", "their", "theirs", "themselves",
	"what", "which", "who", "whom", "whose", "this", "that", "these", "those",
	"am", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having", "do", "does", "did", "doing", "done",
	"will", "would", "shall", "should", "can", "could", "may", "might", "must",
	"at", "by", "for", "from", "in", "into", "of", "off", "on", "onto", "out", "over",
	"to", "up", "down", "with", "within", "without", "about", "above", "below",
	"after", "before", "again", "against", "between", "through", "during", "under",
	"until", "while", "because", "as", "once", "here", "there", "when", "where",
	"why", "how", "all", "any", "both", "each", "few", "more", "most", "other",
	"some", "such", "no", "not", "only", "own", "same", "too", "very", "just",
	"also", "much", "many", "really", "like", "get", "got", "one", "now", "even",
	"still", "ever", "every", "let", "lot", "going", "want", "know", "think",
	"dont", "don", "cant", "im", "ive", "youre", "isnt", "wasnt",
	"didnt", "doesnt", "wont", "thats", "theres", "whats",
)

// priorityWords are mental-health terms that always rank ahead of other
// keywords regardless of frequency.
var priorityWords = newWordSet(
	"anxiety", "anxious", "depression", "depressed", "stress", "stressed",
	"therapy", "therapist", "counseling", "counselor", "panic", "trauma",
	"ptsd", "burnout", "lonely", "loneliness", "grief", "suicide", "suicidal",
	"selfharm", "insomnia", "sleep", "medication", "mindfulness", "meditation",
	"overwhelmed", "sad", "sadness", "anger", "fear", "worry", "worried",
	"mental", "health", "support", "crisis", "hopeless", "mood", "bipolar",
	"adhd", "ocd", "eating", "addiction", "relationship", "self", "esteem",
)

type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s wordSet) has(word string) bool {
	_, ok := s[word]
	return ok
}

// IsStopWord reports whether word is excluded from keyword counting.
func IsStopWord(word string) bool { return stopWords.has(word) }

// IsPriority reports whether word belongs to the priority keyword set.
func IsPriority(word string) bool { return priorityWords.has(word) }
