package workflow

// Workflow ids.
const (
	FlowRegister     = "register"
	FlowAddListing   = "add_listing"
	FlowListListings = "list_listings"
	FlowApply        = "apply"
	FlowTriage       = "triage"
	FlowWithdraw     = "withdraw"
	FlowComplete     = "complete"
)

// Menu choice payloads. The dispatcher maps these to workflow entries or
// direct queries; workflows reuse them on the keyboards they emit.
const (
	ChoiceHome        = "home"
	ChoiceList        = "list"
	ChoiceSignup      = "signup"
	ChoiceRegister    = "register"
	ChoiceProfile     = "profile"
	ChoiceMySignups   = "myprog"
	ChoiceAbout       = "about"
	ChoiceAddListing  = "add_prog"
	ChoiceViewApps    = "view_app"
	ChoiceAccept      = "accept_app"
	ChoiceReject      = "reject_app"
	ChoiceListingID   = "view_prog_id"
	ChoiceCompleteRun = "complete_programme"
)

// Step-level choice payloads.
const (
	choiceConfirmReg     = "confirm_reg"
	choiceCancelReg      = "cancel_reg"
	choiceConfirmListing = "confirm_prog"
	choiceCancelListing  = "cancel_prog"
	choiceAnotherYes     = "confirm_another"
	choiceAnotherNo      = "cancel_another"
	choiceStartWithdraw  = "withdraw"
	choiceWithdrawYes    = "yes_withdraw"
	choiceWithdrawNo     = "go_home"
	choiceCompleteYes    = "yes_complete"
	choiceCompleteNo     = "no_incomplete"
	choiceConfirmRoster  = "double_confirm_list"
	choiceStartOver      = "start_over"
)
