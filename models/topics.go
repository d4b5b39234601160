// models/topics.go
package models

// Genre groups topics into disjoint bands of topic numbers. A round picks
// its topic uniformly at random inside the band of the chosen genre.
type Genre string

const (
	GenreLove  Genre = "love"
	GenreParty Genre = "party"
	GenreSpicy Genre = "spicy"
)

// TopicBand is an inclusive range of topic numbers.
type TopicBand struct {
	Min int
	Max int
}

var genreBands = map[Genre]TopicBand{
	GenreLove:  {Min: 1, Max: 5},
	GenreParty: {Min: 21, Max: 25},
	GenreSpicy: {Min: 41, Max: 45},
}

// BandFor returns the topic-number band for a genre. ok is false for an
// unknown genre label.
func BandFor(genre Genre) (band TopicBand, ok bool) {
	band, ok = genreBands[genre]
	return band, ok
}

// Genres lists every known genre label.
func Genres() []Genre {
	return []Genre{GenreLove, GenreParty, GenreSpicy}
}

// TopicSeed is a catalog entry used to seed the topics table. IDs are
// assigned at seed time; topic numbers are stable.
type TopicSeed struct {
	Number      int
	Title       string
	Description string
	Category    Genre
}

// TopicCatalog is the built-in reference topic set, five per genre band.
var TopicCatalog = []TopicSeed{
	{Number: 1, Title: "嬉しい告白のされ方", Description: "1=微妙 100=最高", Category: GenreLove},
	{Number: 2, Title: "理想のデートスポット", Description: "1=行きたくない 100=行きたい", Category: GenreLove},
	{Number: 3, Title: "恋人にされたら嫌なこと", Description: "1=些細 100=絶対に無理", Category: GenreLove},
	{Number: 4, Title: "結婚したい有名人", Description: "1=したくない 100=今すぐしたい", Category: GenreLove},
	{Number: 5, Title: "キュンとする仕草", Description: "1=しない 100=キュン死", Category: GenreLove},
	{Number: 21, Title: "カラオケで盛り上がる曲", Description: "1=しんみり 100=大盛り上がり", Category: GenreParty},
	{Number: 22, Title: "学校にあったら嬉しい施設", Description: "1=いらない 100=最高", Category: GenreParty},
	{Number: 23, Title: "強そうな動物", Description: "1=弱い 100=最強", Category: GenreParty},
	{Number: 24, Title: "コンビニの人気商品", Description: "1=売れない 100=バカ売れ", Category: GenreParty},
	{Number: 25, Title: "夏休みにやりたいこと", Description: "1=やりたくない 100=絶対やる", Category: GenreParty},
	{Number: 41, Title: "ドキッとする言葉", Description: "1=しない 100=心臓に悪い", Category: GenreSpicy},
	{Number: 42, Title: "大人な夜の過ごし方", Description: "1=健全 100=大人", Category: GenreSpicy},
	{Number: 43, Title: "言われたら照れるセリフ", Description: "1=平気 100=真っ赤", Category: GenreSpicy},
	{Number: 44, Title: "魅力的な色気", Description: "1=ない 100=むんむん", Category: GenreSpicy},
	{Number: 45, Title: "距離が近いと感じる瞬間", Description: "1=普通 100=ドキドキ", Category: GenreSpicy},
}
