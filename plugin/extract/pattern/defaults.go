package pattern

// Month and weekday alternations shared by several expressions.
const (
	monthAlt   = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
	weekdayAlt = `monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thur|thu|fri`
	streetAlt  = `street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|crescent|cres|place|pl|parkway|pkwy|highway|hwy|circle|cir|terrace|square|sq`
	meridiem   = `(?:am|pm|a\.m\.|p\.m\.)`
)

// Names of patterns looked up individually by the extractors.
const (
	AddressStreet      = "address_street"
	AddressLandmark    = "address_landmark"
	AddressPostal      = "address_postal"
	AddressCoordinates = "address_coordinates"

	ClueAt = "clue_at_symbol"

	TitleSentenceImperative = "title_imperative"

	DateISO      = "date_iso"
	DateMonthDay = "date_month_day"
	DateDayMonth = "date_day_month"
	DateNumeric  = "date_numeric"
	DateRelative = "date_relative"
	DateWeekday  = "date_weekday"
	TimeRange12  = "time_range_12h"
	TimeRange24  = "time_range_24h"
	Time12       = "time_12h"
	Time24       = "time_24h"
	TimeNamed    = "time_named"
	DurationFor  = "duration_for"
	AllDay       = "all_day"

	GuardTimePrefix     = "guard_time_prefix"
	GuardDurationPrefix = "guard_duration_prefix"
	GuardDatePrefix     = "guard_date_prefix"
	GuardMetadataLine   = "guard_metadata_line"
	LocationBoundary    = "boundary_location"
	LabelBoundary       = "boundary_label"
	TitleBoundary       = "boundary_title"
	LexiconAddress      = "lexicon_address"
	LexiconVenue        = "lexicon_venue"
	LexiconDirectional  = "lexicon_directional"
	LexiconCity         = "lexicon_canadian_city"
	LexiconEvent        = "lexicon_event"
	LexiconTimeOrDay    = "lexicon_time_or_day"
	LexiconPlace        = "lexicon_place"
	LexiconContinuation = "lexicon_continuation"
	RewriteStudentEvent = "rewrite_student_event"
)

// DefaultSpecs returns the built-in pattern set. Base confidences are tuned
// constants; the extractors add bonuses on top of them.
func DefaultSpecs() []Spec {
	specs := make([]Spec, 0, 96)
	specs = append(specs, locationSpecs()...)
	specs = append(specs, titleSpecs()...)
	specs = append(specs, dateTimeSpecs()...)
	specs = append(specs, guardSpecs()...)
	return specs
}

func locationSpecs() []Spec {
	return []Spec{
		// Explicit addresses.
		{AddressStreet, GroupAddress, `(?i)\b\d{1,5}[a-z]?\s+(?:[a-z0-9][\w'.-]*\s+){0,4}?(?:` + streetAlt + `)\b\.?(?:,\s*[a-z][a-z'-]+\b(?:\s[a-z][a-z'-]+\b){0,2})?`, 0.85},
		{AddressLandmark, GroupAddress, `\b(?:[A-Z][\w'&.-]*\s+){1,4}(?:Center|Centre|Hall|Park|Plaza|Mall|Stadium|Arena|Library|Museum|Hospital|Hotel|Tower|Station|Airport|University|College|School|Church|Theatre|Theater|Gallery|Market|Auditorium|Pavilion|Gardens)\b`, 0.8},
		{AddressPostal, GroupAddress, `(?i)\b[abceghj-nprstvxy]\d[abceghj-nprstv-z][ -]?\d[abceghj-nprstv-z]\d\b`, 0.8},
		{AddressCoordinates, GroupAddress, `(-?\d{1,2}\.\d{2,})\s*,\s*(-?\d{1,3}\.\d{2,})`, 0.75},

		// Context clues. Group 1 is the raw value, trimmed by the extractor.
		{ClueAt, GroupContextClue, `@\s*([A-Za-z0-9][^\n,;!?@]{0,80})`, 0.95},
		{"clue_address_label", GroupContextClue, `(?i)\baddress\s*:\s*([^\n]{2,150})`, 0.9},
		{"clue_location_label", GroupContextClue, `(?i)\blocation\s*:\s*([^\n]{2,150})`, 0.9},
		{"clue_venue_label", GroupContextClue, `(?i)\bvenue\s*:\s*([^\n]{2,150})`, 0.9},
		{"clue_where_label", GroupContextClue, `(?i)\bwhere\s*:\s*([^\n]{2,150})`, 0.85},
		{"clue_meet_at", GroupContextClue, `(?i)\bmeet(?:ing)?(?:\s+up)?\s+at\s+([^\n;!?@]{2,80})`, 0.85},
		{"clue_at", GroupContextClue, `(?i)\bat\s+([^\n;!?@]{2,80})`, 0.8},
		{"clue_in", GroupContextClue, `(?i)\bin\s+([^\n;!?@]{2,80})`, 0.7},

		// Venue keywords.
		{"venue_room_number", GroupVenue, `(?i)\b(?:room|rm\.?|suite|ste\.?)\s*#?\s*[a-z]?\d+[a-z]?\b`, 0.8},
		{"venue_named_room", GroupVenue, `(?i)\b(?:[a-z]+\s+){0,2}(?:conference|meeting|board|class|lecture|break|training)\s*room\b`, 0.75},
		{"venue_building", GroupVenue, `(?i)\b(?:building|bldg\.?)\s+#?[a-z]?\d+[a-z]?\b|\b(?:building|bldg\.?)\s+[A-Z]\b`, 0.75},
		{"venue_floor", GroupVenue, `(?i)\b(?:\d{1,3}(?:st|nd|rd|th)|ground|top|first|second|third|fourth|fifth|main)\s+floor\b`, 0.7},
		{"venue_office", GroupVenue, `(?i)\b(?:office|lab|studio|unit)\s*#?\s*\d+[a-z]?\b`, 0.7},

		// Implicit places.
		{"implicit_workplace", GroupImplicit, `(?i)\b(?:the\s+)?(?:office|workplace|headquarters|hq)\b|\bat\s+work\b`, 0.65},
		{"implicit_educational", GroupImplicit, `(?i)\b(?:the\s+)?(?:school|campus|classroom|gymnasium|gym|cafeteria|auditorium|library|university|college)\b`, 0.65},
		{"implicit_home", GroupImplicit, `(?i)\b(?:my|your|our|his|her|their)\s+(?:place|house|home|apartment|condo)\b|\bat\s+home\b`, 0.6},
		{"implicit_generic", GroupImplicit, `(?i)\b(?:the\s+)?(?:park|beach|downtown|mall|restaurant|cafe|coffee\s+shop|pub|theatre|theater|cinema|hospital|clinic|church|stadium)\b`, 0.5},

		// Directional references. Group 1, when present, is the landmark tail.
		{"directional_entrance", GroupDirectional, `(?i)\b(?:front|back|main|side|rear|north|south|east|west)\s+(?:entrance|door|gate|lobby|exit)\b`, 0.7},
		{"directional_relative", GroupDirectional, `(?i)\b(?:near|behind|next\s+to|across\s+from|opposite|beside|outside|inside|in\s+front\s+of)\s+((?:the\s+)?[a-z][\w'-]*(?:\s+[a-z][\w'-]*){0,3})`, 0.6},
		{"directional_floor", GroupDirectional, `(?i)\b(?:upstairs|downstairs|on\s+the\s+(?:\d{1,3}(?:st|nd|rd|th)|ground|top)\s+floor)\b`, 0.6},
		{"directional_area", GroupDirectional, `(?i)\b(?:the\s+)?(?:lobby|reception|parking\s+lot|food\s+court|courtyard|atrium|rooftop|patio)\b`, 0.55},
	}
}

func titleSpecs() []Spec {
	return []Spec{
		{"title_label", GroupTitleLabel, `(?im)^[ \t]*title[ \t]*:[ \t]*(.+?)[ \t]*$`, 0.98},

		{"title_event_name", GroupTitleKeyword, `(?im)^[ \t]*event(?:[ \t]+name)?[ \t]*:[ \t]*(.+?)[ \t]*$`, 0.9},
		{"title_subject", GroupTitleKeyword, `(?im)^[ \t]*subject[ \t]*:[ \t]*(.+?)[ \t]*$`, 0.9},
		{"title_agenda", GroupTitleKeyword, `(?im)^[ \t]*(?:agenda|topic)[ \t]*:[ \t]*(.+?)[ \t]*$`, 0.85},

		{"title_quoted_double", GroupTitleQuoted, `"([^"\n]{3,50})"`, 0.8},
		{"title_quoted_curly", GroupTitleQuoted, `“([^”\n]{3,50})”`, 0.8},
		{"title_quoted_backtick", GroupTitleQuoted, "`([^`\\n]{3,50})`", 0.75},
		{"title_quoted_single", GroupTitleQuoted, `(?:^|[\s(\[:])'([^'\n]{3,50})'(?:$|[\s).,!?:;\]])`, 0.75},

		{"title_action_with", GroupTitleAction, `\b((?i:(?:team\s+|client\s+|quick\s+|weekly\s+)?(?:meeting|lunch|dinner|breakfast|coffee|call|sync|chat|interview|catch[\s-]?up|1:1)\s+with\s+)(?:(?i:(?:the\s+|my\s+|our\s+)?(?:team|client|clients|manager|boss|board|family|doctor|dentist))\b|[A-Z][\w'.-]*(?:\s+(?:and\s+|&\s+)?[A-Z][\w'.-]*){0,3}))`, 0.8},

		{"party", GroupTitleEventType, `(?i)\b(?:birthday\s+)?(?:party|celebration|bbq|barbecue|potluck|gala|reunion|wedding|shower|anniversary)\b`, 0.7},
		{"conference", GroupTitleEventType, `(?i)\b(?:conference|summit|seminar|workshop|webinar|meetup|standup|stand-up|meeting|retro|retrospective|review|presentation|demo|interview)\b`, 0.7},
		{"class", GroupTitleEventType, `(?i)\b(?:class|course|lecture|lesson|tutorial|training|exam|midterm|quiz|field\s+trip|assembly)\b`, 0.7},
		{"medical", GroupTitleEventType, `(?i)\b(?:doctor|dentist|dental|physio|therapy|checkup|check-up|appointment|clinic|vaccination)\b`, 0.7},
		{"travel", GroupTitleEventType, `(?i)\b(?:flight|train|trip|departure|arrival|check-in|checkout|boarding)\b`, 0.7},
		{"meal", GroupTitleEventType, `(?i)\b(?:dinner|lunch|breakfast|brunch|coffee|drinks)\b`, 0.7},

		{"title_context", GroupTitleContext, `(?i)\b(?:going\s+to|scheduled\s+for|reminder\s+about|remind\s+me\s+(?:to|about)|don'?t\s+forget(?:\s+to|\s+about)?|attending)\s+(?:the\s+|a\s+|an\s+|my\s+)?([^\n.!?]{3,80})`, 0.6},

		{TitleSentenceImperative, GroupTitleSentence, `(?i)^(?:attend|join|call|meet|visit|pick\s+up|drop\s+off|submit|review|finish|prepare|bring|book|schedule|plan)\b[^\n.!?]*`, 0.45},
	}
}

func dateTimeSpecs() []Spec {
	return []Spec{
		{DateISO, GroupDate, `\b(\d{4})-(\d{1,2})-(\d{1,2})\b`, 0.95},
		{DateMonthDay, GroupDate, `(?i)\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`, 0.9},
		{DateDayMonth, GroupDate, `(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b\.?(?:,?\s+(\d{4})\b)?`, 0.9},
		{DateNumeric, GroupDate, `\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`, 0.8},
		{DateRelative, GroupDate, `(?i)\b(day\s+after\s+tomorrow|today|tonight|tomorrow)\b`, 0.85},
		{DateWeekday, GroupDate, `(?i)\b(?:(next|this|coming)\s+)?(` + weekdayAlt + `)\b`, 0.75},

		{TimeRange12, GroupTime, `(?i)\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)?\s*(?:-|–|to|until|till)\s*(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`, 0.9},
		{TimeRange24, GroupTime, `\b([01]?\d|2[0-3]):([0-5]\d)\s*(?:-|–|to|until|till)\s*([01]?\d|2[0-3]):([0-5]\d)\b`, 0.85},
		{Time12, GroupTime, `(?i)\b(\d{1,2})(?::([0-5]\d))?\s*((?:am|pm)\b|a\.m\.|p\.m\.)`, 0.9},
		{Time24, GroupTime, `\b([01]?\d|2[0-3]):([0-5]\d)\b`, 0.8},
		{TimeNamed, GroupTime, `(?i)\b(noon|midday|midnight)\b`, 0.8},

		{DurationFor, GroupDuration, `(?i)\bfor\s+(\d+(?:\.\d+)?|an?|one|two|three|half\s+an?)\s*(hours?|hrs?|minutes?|mins?)\b`, 0.8},
		{AllDay, GroupDuration, `(?i)\ball[\s-]day\b`, 0.85},
	}
}

func guardSpecs() []Spec {
	return []Spec{
		{GuardTimePrefix, GroupGuard, `(?i)^(?:\d{1,2}(?::\d{2})?\s*(?:am|pm)\b|\d{1,2}(?::\d{2})?\s*[ap]\.m\.|\d{1,2}:\d{2}\b|\d{1,2}\s*$|(?:noon|midnight|midday)\b)`, 0},
		{GuardDurationPrefix, GroupGuard, `(?i)^(?:(?:\d+(?:\.\d+)?|an?|a\s+few|a\s+couple\s+of|half\s+an?|several)\s*(?:seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|months?|years?)\b|a\s+(?:while|bit|moment)\b|the\s+(?:morning|afternoon|evening|meantime|meanwhile|future)\b)`, 0},
		{GuardDatePrefix, GroupGuard, `(?i)^(?:` + monthAlt + `|` + weekdayAlt + `|saturday|sunday|today|tomorrow|tonight|\d{4}\b|\d{1,2}/\d{1,2})\b`, 0},
		{GuardMetadataLine, GroupGuard, `(?i)^\s*(?:item\s+id|due\s+date|deadline|date|time|location|where|when|venue|address)\s*:`, 0},

		{LocationBoundary, GroupGuard, `(?i)\s+(?:on|at|from|to|for|with|by|until|till|before|after|and|or|but|tomorrow|today|tonight|next|this|weekdays|` + weekdayAlt + `|saturday|sunday)\b|\s+\d{1,2}(?::\d{2})?\s*` + meridiem + `|\s+\d{1,2}:\d{2}\b|\s*@|\s*[,;!?()\n]|\.\s|\.$`, 0},
		{LabelBoundary, GroupGuard, `(?i)\s*[;!?|\n]|\s+(?:on|from|until)\s|\s+at\s+\d|\s+\d{1,2}(?::\d{2})?\s*` + meridiem + `|\.\s|\.$`, 0},
		{TitleBoundary, GroupGuard, `(?i)\s+(?:on|at|from|until|till|in|tomorrow|today|tonight|next|this|weekdays|every|` + weekdayAlt + `|saturday|sunday)\b|\s+\d{1,2}(?::\d{2})?\s*` + meridiem + `|\s+\d{1,2}:\d{2}\b|\s*@|\s*[,;!?\n]|\.\s|\.$|\s+-\s`, 0},

		{LexiconAddress, GroupGuard, `(?i)\b(?:` + streetAlt + `|suite|apt|unit)\b`, 0},
		{LexiconVenue, GroupGuard, `(?i)\b(?:room|rm|building|bldg|floor|hall|center|centre|office|auditorium|lab|studio|library|gym|lobby|arena|stadium|plaza|mall|cafe|restaurant|hotel|theatre|theater|museum|park|station|airport|school|campus|church)\b`, 0},
		{LexiconDirectional, GroupGuard, `(?i)\b(?:entrance|exit|gate|near|behind|next\s+to|across\s+from|opposite|beside|outside|inside|in\s+front\s+of|upstairs|downstairs)\b`, 0},
		{LexiconCity, GroupGuard, `(?i)\b(?:toronto|montreal|montréal|vancouver|calgary|edmonton|ottawa|winnipeg|quebec\s+city|hamilton|kitchener|waterloo|london|victoria|halifax|oshawa|windsor|saskatoon|regina|st\.?\s+john's|kelowna|barrie|guelph|kingston|mississauga|brampton|markham|vaughan|burnaby|surrey|laval|gatineau|sudbury|thunder\s+bay|fredericton|charlottetown|whitehorse|yellowknife|iqaluit)\b`, 0},
		{LexiconEvent, GroupGuard, `(?i)\b(?:meeting|meet|standup|stand-up|sync|call|party|celebration|conference|seminar|workshop|class|lecture|lesson|exam|appointment|dinner|lunch|breakfast|brunch|coffee|interview|presentation|demo|review|event|game|practice|rehearsal|concert|show|trip|flight|assembly|session|webinar)\b`, 0},
		{LexiconTimeOrDay, GroupGuard, `(?i)\b(?:\d{1,2}(?::\d{2})?\s*` + meridiem + `|\d{1,2}:\d{2}\b|(?:noon|midnight|today|tomorrow|tonight|morning|afternoon|evening|` + weekdayAlt + `|saturday|sunday|` + monthAlt + `|next\s+week)\b)`, 0},
		{LexiconPlace, GroupGuard, `(?i)(?:@|\b(?:at|in)\s+the\b|\b(?:room|building|floor|hall|office|street|st|avenue|ave|road|rd|center|centre|cafe|restaurant|park|library|gym|auditorium|address|location|venue)\b)`, 0},
		{LexiconContinuation, GroupGuard, `(?i)^(?:and|or|but|then|also|at|in|on|from|with|for|to|by|until|after|before|so|plus|which|where|when|because)\b`, 0},

		// On <day> the <group> students will <verb> <event>
		{RewriteStudentEvent, GroupGuard, `(?i)\bon\s+((?:` + weekdayAlt + `|saturday|sunday)|(?:` + monthAlt + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?)\s*,?\s+the\s+([\w -]{1,40}?)\s+students\s+will\s+([a-z]+)\s+(?:an?\s+|the\s+)?([^.\n!?,]{2,80}?)\s*(?:[.!?\n,]|$)`, 0},
	}
}
