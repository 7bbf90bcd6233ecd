package turn

// FallbackNarration is shown when every attempt failed. The turn still counts
// but nothing in the world changes.
const FallbackNarration = "The world seems to hold its breath. Whatever you tried, nothing comes of it this time. You may want to try again, perhaps another way."
