package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/haleybot/haley/pkg/domain"
)

// Registration step names.
const (
	stepRegFirstName = "first_name"
	stepRegLastName  = "last_name"
	stepRegBirthDate = "date_of_birth"
	stepRegPhoto     = "photo"
	stepRegNRIC      = "nric"
	stepRegIRSExpiry = "irs_expiry"
	stepRegMobile    = "mobile"
	stepRegPostal    = "postal"
	stepRegReview    = "review"
)

// Register builds the registration workflow: nine prompts collected in a
// direct message, reviewed as a summary card, committed on an explicit
// confirm.
func Register() *Workflow {
	return &Workflow{
		ID:    FlowRegister,
		Begin: beginRegister,
		Steps: map[string]*Step{
			stepRegFirstName: {Accepts: domain.InputText, Handle: regFirstName},
			stepRegLastName:  {Accepts: domain.InputText, Handle: regLastName},
			stepRegBirthDate: {Accepts: domain.InputText, Handle: regBirthDate},
			stepRegPhoto: {
				Accepts:  domain.InputPhoto,
				Reprompt: "Please upload a photo of yourself.",
				Handle:   regPhoto,
			},
			stepRegNRIC:      {Accepts: domain.InputText, Handle: regNRIC},
			stepRegIRSExpiry: {Accepts: domain.InputText, Handle: regIRSExpiry},
			stepRegMobile:    {Accepts: domain.InputText, Handle: regMobile},
			stepRegPostal:    {Accepts: domain.InputText, Handle: regPostal},
			stepRegReview: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceConfirmReg, choiceCancelReg},
				Reprompt: "Please use the buttons above to confirm or cancel.",
				Handle:   regReview,
			},
		},
	}
}

func beginRegister(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatPrivate {
		return Cancelled(domain.Reply(ev.ChatID, "Registration only works in a direct message with me."))
	}
	_, err := env.Store.Actor(ctx, ev.ActorID)
	switch {
	case err == nil:
		return Cancelled(domain.ReplyWithButtons(ev.ChatID,
			"You are already registered!",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	case !errors.Is(err, domain.ErrNotFound):
		return Fail(err, transientFailure(ev.ChatID))
	}
	sess.Fields["username"] = ev.Username
	return Goto(stepRegFirstName, domain.Reply(ev.ChatID, "Let's get you registered. Please enter your first name."))
}

func regFirstName(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter your first name."))
	}
	sess.Fields["first_name"] = name
	return Goto(stepRegLastName, domain.Reply(ev.ChatID, "Please enter your last name."))
}

func regLastName(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter your last name."))
	}
	sess.Fields["last_name"] = name
	return Goto(stepRegBirthDate, domain.Reply(ev.ChatID, "Please enter your date of birth in DDMMYY format (e.g. 120394)."))
}

func regBirthDate(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	t, err := ParseDayMonthYear(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid date. Please enter your date of birth in DDMMYY format (e.g. 120394)."))
	}
	sess.Fields["date_of_birth"] = t.Format(layoutFieldDate)
	return Goto(stepRegPhoto, domain.Reply(ev.ChatID, "Please upload a photo of yourself."))
}

func regPhoto(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if len(ev.Photo) == 0 {
		return Reprompt(domain.Reply(ev.ChatID, "Please upload a photo of yourself."))
	}
	sess.Fields["photo"] = base64.StdEncoding.EncodeToString(ev.Photo)
	return Goto(stepRegNRIC, domain.Reply(ev.ChatID, "Please enter your NRIC (e.g. S1234567D)."))
}

func regNRIC(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	nric := strings.TrimSpace(ev.Text)
	if !ValidNRIC(nric) {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid NRIC. Please enter your NRIC (e.g. S1234567D)."))
	}
	sess.Fields["nric"] = nric
	return Goto(stepRegIRSExpiry, domain.Reply(ev.ChatID, "Please enter your IRS expiry date in DDMMYY format."))
}

func regIRSExpiry(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	t, err := ParseDayMonthYear(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid date. Please enter your IRS expiry date in DDMMYY format."))
	}
	sess.Fields["irs_expiry"] = t.Format(layoutFieldDate)
	return Goto(stepRegMobile, domain.Reply(ev.ChatID, "Please enter your mobile number (e.g. 91234567)."))
}

func regMobile(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	mobile := strings.TrimSpace(ev.Text)
	if !ValidMobile(mobile) {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid mobile number. Please enter an 8-digit number starting with 8 or 9."))
	}
	sess.Fields["mobile"] = mobile
	return Goto(stepRegPostal, domain.Reply(ev.ChatID, "Please enter your postal code (e.g. 520123)."))
}

func regPostal(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	postal := strings.TrimSpace(ev.Text)
	if !ValidPostal(postal) {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid postal code. Please enter a 6-digit postal code."))
	}
	sess.Fields["postal"] = postal

	var form RegistrationForm
	if err := decodeForm(sess.Fields, &form); err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	return Goto(stepRegReview, domain.ReplyWithButtons(ev.ChatID,
		registrationSummary(&form),
		domain.Button{Label: "Confirm", Choice: choiceConfirmReg},
		domain.Button{Label: "Cancel", Choice: choiceCancelReg},
	))
}

func regReview(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceCancelReg {
		return Cancelled(domain.ReplyWithButtons(ev.ChatID,
			"Registration cancelled. Nothing was saved.",
			domain.Button{Label: "Start over", Choice: ChoiceRegister},
		))
	}

	var form RegistrationForm
	if err := decodeForm(sess.Fields, &form); err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	actor, err := form.Actor(sess.ActorID, env.Now())
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if err := env.Store.CreateActor(ctx, actor); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return Finish(domain.Reply(ev.ChatID, "You are already registered!"))
		}
		return Fail(err, transientFailure(ev.ChatID))
	}
	env.log().Info("actor registered", "actor_id", actor.ID)
	return Finish(domain.ReplyWithButtons(ev.ChatID,
		"Registration complete! Welcome aboard.",
		domain.Button{Label: "Go to main page", Choice: ChoiceHome},
	))
}
