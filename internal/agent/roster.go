package agent

// SeedRoster returns the founding villagers of a fresh world. Their personas
// are fixed so a reset always reproduces the same opening cast.
func SeedRoster(tick int) []*Agent {
	seeds := []struct {
		name    string
		place   Place
		persona Persona
	}{
		{
			name:  "Maren",
			place: PlaceCafe,
			persona: Persona{
				Traits:      []string{"warm", "practical", "incurably nosy"},
				Values:      []string{"community", "good bread"},
				Flaws:       []string{"gossips"},
				Quirks:      []string{"taps the counter twice before answering"},
				SpeechStyle: "warm and rambling",
				Backstory:   "Maren runs the cafe her mother left her and considers every conversation in it her business.",
			},
		},
		{
			name:  "Silas",
			place: PlaceWorkshop,
			persona: Persona{
				Traits:      []string{"meticulous", "blunt", "patient"},
				Values:      []string{"craftsmanship", "fairness"},
				Flaws:       []string{"works past exhaustion"},
				Quirks:      []string{"hums while working"},
				SpeechStyle: "short, dry sentences",
				Backstory:   "Silas repairs whatever the village breaks and keeps a ledger of favors nobody else remembers.",
			},
		},
		{
			name:  "Wren",
			place: PlaceLibrary,
			persona: Persona{
				Traits:      []string{"dreamy", "curious", "restless"},
				Values:      []string{"honesty", "quiet mornings"},
				Flaws:       []string{"second-guesses everything"},
				Quirks:      []string{"sketches strangers"},
				SpeechStyle: "questions more than statements",
				Backstory:   "Wren came for one winter to finish a book of poems and has been finishing it for six years.",
			},
		},
		{
			name:  "Isolde",
			place: PlaceGarden,
			persona: Persona{
				Traits:      []string{"gentle", "superstitious", "stubborn"},
				Values:      []string{"loyalty", "community"},
				Flaws:       []string{"avoids conflict"},
				Quirks:      []string{"names the garden birds"},
				SpeechStyle: "an old saying for every occasion",
				Backstory:   "Isolde keeps the shared garden and swears the tomatoes grow better when spoken to kindly.",
			},
		},
		{
			name:  "Bram",
			place: PlacePlaza,
			persona: Persona{
				Traits:      []string{"wry", "patient", "blunt"},
				Values:      []string{"fairness", "honesty"},
				Flaws:       []string{"holds grudges"},
				Quirks:      []string{"never sits with their back to a door"},
				SpeechStyle: "short, dry sentences",
				Backstory:   "Bram ferried goods upriver for thirty years and now judges the plaza's arguments from his bench.",
			},
		},
		{
			name:  "Petra",
			place: PlaceHome,
			persona: Persona{
				Traits:      []string{"curious", "restless", "meticulous"},
				Values:      []string{"craftsmanship"},
				Flaws:       []string{"forgets to eat"},
				Quirks:      []string{"collects smooth stones"},
				SpeechStyle: "careful, precise wording",
				Backstory:   "Petra apprenticed under Silas until she started inventing things he refuses to understand.",
			},
		},
	}

	roster := make([]*Agent, 0, len(seeds))
	for _, s := range seeds {
		a := New(s.name, s.persona, s.place, tick)
		a.Activity = AtPlace(s.place)
		roster = append(roster, a)
	}
	return roster
}
