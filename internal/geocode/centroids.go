package geocode

// stateCentroids holds one approximate point per US state or territory,
// keyed by normalized name. It is the coarsest resolution tier; accuracy is
// dashboard-scale, not address-scale.
var stateCentroids = map[string]Point{
	"Alabama":                  {32.806671, -86.791130},
	"Alaska":                   {61.370716, -152.404419},
	"Arizona":                  {33.729759, -111.431221},
	"Arkansas":                 {34.969704, -92.373123},
	"California":               {36.116203, -119.681564},
	"Colorado":                 {39.059811, -105.311104},
	"Connecticut":              {41.597782, -72.755371},
	"Delaware":                 {39.318523, -75.507141},
	"District Of Columbia":     {38.907200, -77.036900},
	"Florida":                  {27.766279, -81.686783},
	"Georgia":                  {33.040619, -83.643074},
	"Hawaii":                   {21.094318, -157.498337},
	"Idaho":                    {44.240459, -114.478828},
	"Illinois":                 {40.349457, -88.986137},
	"Indiana":                  {39.849426, -86.258278},
	"Iowa":                     {42.011539, -93.210526},
	"Kansas":                   {38.526600, -96.726486},
	"Kentucky":                 {37.668140, -84.670067},
	"Louisiana":                {31.169546, -91.867805},
	"Maine":                    {44.693947, -69.381927},
	"Maryland":                 {39.063946, -76.802101},
	"Massachusetts":            {42.230171, -71.530106},
	"Michigan":                 {43.326618, -84.536095},
	"Minnesota":                {45.694454, -93.900192},
	"Mississippi":              {32.741646, -89.678696},
	"Missouri":                 {38.456085, -92.288368},
	"Montana":                  {46.921925, -110.454353},
	"Nebraska":                 {41.125370, -98.268082},
	"Nevada":                   {38.313515, -117.055374},
	"New Hampshire":            {43.452492, -71.563896},
	"New Jersey":               {40.298904, -74.521011},
	"New Mexico":               {34.840515, -106.248482},
	"New York":                 {42.165726, -74.948051},
	"North Carolina":           {35.630066, -79.806419},
	"North Dakota":             {47.528912, -99.784012},
	"Ohio":                     {40.388783, -82.764915},
	"Oklahoma":                 {35.565342, -96.928917},
	"Oregon":                   {44.572021, -122.070938},
	"Pennsylvania":             {40.590752, -77.209755},
	"Rhode Island":             {41.680893, -71.511780},
	"South Carolina":           {33.856892, -80.945007},
	"South Dakota":             {44.299782, -99.438828},
	"Tennessee":                {35.747845, -86.692345},
	"Texas":                    {31.054487, -97.563461},
	"Utah":                     {40.150032, -111.862434},
	"Vermont":                  {44.045876, -72.710686},
	"Virginia":                 {37.769337, -78.169968},
	"Washington":               {47.400902, -121.490494},
	"West Virginia":            {38.491226, -80.954453},
	"Wisconsin":                {44.268543, -89.616508},
	"Wyoming":                  {42.755966, -107.302490},
	"Puerto Rico":              {18.220800, -66.590100},
	"Guam":                     {13.444300, 144.793700},
	"U.s. Virgin Islands":      {18.335800, -64.896300},
	"American Samoa":           {-14.271000, -170.132200},
	"Northern Mariana Islands": {15.097900, 145.673900},
}

// stateCodes expands postal abbreviations so "ID" and "Idaho" share a
// cache entry.
var stateCodes = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District Of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"GU": "Guam",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"PR": "Puerto Rico",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"VI": "U.s. Virgin Islands",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}
