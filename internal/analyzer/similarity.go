package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// MaxVocabulary TF-IDF词表上限
const MaxVocabulary = 1000

// 两个及以上连续单词字符
var vectorTokenRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// 英文停用词表
var englishStopWords = toSet(
	"a", "about", "above", "across", "after", "afterwards", "again", "against", "all", "almost",
	"alone", "along", "already", "also", "although", "always", "am", "among", "amongst", "amoungst",
	"amount", "an", "and", "another", "any", "anyhow", "anyone", "anything", "anyway", "anywhere",
	"are", "around", "as", "at", "back", "be", "became", "because", "become", "becomes", "becoming",
	"been", "before", "beforehand", "behind", "being", "below", "beside", "besides", "between",
	"beyond", "bill", "both", "bottom", "but", "by", "call", "can", "cannot", "cant", "co", "con",
	"could", "couldnt", "cry", "de", "describe", "detail", "do", "done", "down", "due", "during",
	"each", "eg", "eight", "either", "eleven", "else", "elsewhere", "empty", "enough", "etc", "even",
	"ever", "every", "everyone", "everything", "everywhere", "except", "few", "fifteen", "fifty",
	"fill", "find", "fire", "first", "five", "for", "former", "formerly", "forty", "found", "four",
	"from", "front", "full", "further", "get", "give", "go", "had", "has", "hasnt", "have", "he",
	"hence", "her", "here", "hereafter", "hereby", "herein", "hereupon", "hers", "herself", "him",
	"himself", "his", "how", "however", "hundred", "i", "ie", "if", "in", "inc", "indeed",
	"interest", "into", "is", "it", "its", "itself", "keep", "last", "latter", "latterly", "least",
	"less", "ltd", "made", "many", "may", "me", "meanwhile", "might", "mill", "mine", "more",
	"moreover", "most", "mostly", "move", "much", "must", "my", "myself", "name", "namely",
	"neither", "never", "nevertheless", "next", "nine", "no", "nobody", "none", "noone", "nor",
	"not", "nothing", "now", "nowhere", "of", "off", "often", "on", "once", "one", "only", "onto",
	"or", "other", "others", "otherwise", "our", "ours", "ourselves", "out", "over", "own", "part",
	"per", "perhaps", "please", "put", "rather", "re", "same", "see", "seem", "seemed", "seeming",
	"seems", "serious", "several", "she", "should", "show", "side", "since", "sincere", "six",
	"sixty", "so", "some", "somehow", "someone", "something", "sometime", "sometimes", "somewhere",
	"still", "such", "system", "take", "ten", "than", "that", "the", "their", "them", "themselves",
	"then", "thence", "there", "thereafter", "thereby", "therefore", "therein", "thereupon",
	"these", "they", "thick", "thin", "third", "this", "those", "though", "three", "through",
	"throughout", "thru", "thus", "to", "together", "too", "top", "toward", "towards", "twelve",
	"twenty", "two", "un", "under", "until", "up", "upon", "us", "very", "via", "was", "we", "well",
	"were", "what", "whatever", "when", "whence", "whenever", "where", "whereafter", "whereas",
	"whereby", "wherein", "whereupon", "wherever", "whether", "which", "while", "whither", "who",
	"whoever", "whole", "whom", "whose", "why", "will", "with", "within", "without", "would", "yet",
	"you", "your", "yours", "yourself", "yourselves",
)

// Similarity 计算两段文本TF-IDF向量的余弦相似度 (0-1)
// 语料只包含这两篇文档, TF-IDF在这里只作为带词权重的余弦相似度使用
// 去除停用词后词表为空时返回 ErrEmptyVocabulary
func Similarity(a, b string) (float64, error) {
	docs := [2]map[string]int{termCounts(a), termCounts(b)}

	vocab := buildVocabulary(docs[:])
	if len(vocab) == 0 {
		return 0, ErrEmptyVocabulary
	}

	// 平滑IDF: ln((1+n)/(1+df)) + 1
	const n = 2.0
	idf := make(map[string]float64, len(vocab))
	for _, term := range vocab {
		df := 0.0
		for _, d := range docs {
			if d[term] > 0 {
				df++
			}
		}
		idf[term] = math.Log((1+n)/(1+df)) + 1
	}

	var vecs [2][]float64
	for i, d := range docs {
		v := make([]float64, len(vocab))
		for j, term := range vocab {
			v[j] = float64(d[term]) * idf[term]
		}
		vecs[i] = l2Normalize(v)
	}

	dot := 0.0
	for j := range vocab {
		dot += vecs[0][j] * vecs[1][j]
	}
	// 消除浮点误差, 保证相同文本得到精确的1
	dot = math.Round(dot*1e9) / 1e9
	return clampFloat(dot, 0, 1), nil
}

// TextSimilarityScore 相似度换算到 0-100
func TextSimilarityScore(resume, job string) (float64, error) {
	sim, err := Similarity(resume, job)
	if err != nil {
		return 0, err
	}
	return sim * 100, nil
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range vectorTokenRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	return counts
}

// buildVocabulary 按语料总词频取前 MaxVocabulary 个词, 同频按字母序
func buildVocabulary(docs []map[string]int) []string {
	total := make(map[string]int)
	for _, d := range docs {
		for term, c := range d {
			total[term] += c
		}
	}
	vocab := make([]string, 0, len(total))
	for term := range total {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if total[vocab[i]] != total[vocab[j]] {
			return total[vocab[i]] > total[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > MaxVocabulary {
		vocab = vocab[:MaxVocabulary]
	}
	return vocab
}

func l2Normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
