package auth

import "hash/fnv"

var adjectives = []string{
	"Sunny", "Misty", "Lucky", "Clever", "Brave", "Happy", "Gentle", "Sparkly",
	"Witty", "Charming", "Sleepy", "Tiny", "Curious", "Jolly", "Zippy", "Peppy",
	"Snug", "Dreamy", "Swift", "Cheery",
}

var cuteNames = []string{
	"Muffin", "Coco", "Pebble", "Tofu", "Pickle", "Waffle", "Sprout", "Mocha",
	"Taco", "Pip", "Nugget", "Cupcake", "Mochi", "Marble", "Fox", "Otter",
	"Bumble", "Panda", "Raven", "Hedgehog",
}

// FriendlyName derives a stable display name ("Sunny Muffin") for users whose
// token carries none. The same user id always maps to the same name, so every
// worker and every frame agree on it.
func FriendlyName(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	sum := h.Sum32()

	adj := adjectives[sum%uint32(len(adjectives))]
	name := cuteNames[(sum/uint32(len(adjectives)))%uint32(len(cuteNames))]
	return adj + " " + name
}
